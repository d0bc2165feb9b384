package rpc

import (
	"context"

	"connectrpc.com/connect"

	"github.com/mmynk/choremates/internal/middleware"
	"github.com/mmynk/choremates/internal/service"
)

func (s *Server) getPartnerInfo(ctx context.Context, _ *connect.Request[GetPartnerInfoRequest]) (*connect.Response[GetPartnerInfoResponse], error) {
	info, err := s.Partners.GetPartnerInfoWithRetry(ctx, middleware.GetUserID(ctx))
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&GetPartnerInfoResponse{Partner: info}), nil
}

func (s *Server) unlink(ctx context.Context, _ *connect.Request[UnlinkRequest]) (*connect.Response[UnlinkResponse], error) {
	if err := s.Partners.Unlink(ctx, middleware.GetUserID(ctx)); err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&UnlinkResponse{}), nil
}

func (s *Server) createChore(ctx context.Context, req *connect.Request[CreateChoreRequest]) (*connect.Response[ChoreResponse], error) {
	chore, err := s.Chores.CreateChore(ctx, middleware.GetUserID(ctx), req.Msg.Title)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ChoreResponse{Chore: chore}), nil
}

func (s *Server) listChores(ctx context.Context, _ *connect.Request[ListChoresRequest]) (*connect.Response[ListChoresResponse], error) {
	chores, err := s.Chores.ListChores(ctx, middleware.GetUserID(ctx))
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ListChoresResponse{Chores: chores}), nil
}

func (s *Server) updateChore(ctx context.Context, req *connect.Request[UpdateChoreRequest]) (*connect.Response[ChoreResponse], error) {
	chore, err := s.Chores.UpdateChore(ctx, middleware.GetUserID(ctx), req.Msg.ChoreID, req.Msg.Title)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ChoreResponse{Chore: chore}), nil
}

func (s *Server) setDone(ctx context.Context, req *connect.Request[SetDoneRequest]) (*connect.Response[SetDoneResponse], error) {
	chore, completion, err := s.Chores.SetDone(ctx, middleware.GetUserID(ctx), req.Msg.ChoreID, req.Msg.Done)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&SetDoneResponse{Chore: chore, Completion: completion}), nil
}

func (s *Server) deleteChore(ctx context.Context, req *connect.Request[DeleteChoreRequest]) (*connect.Response[DeleteChoreResponse], error) {
	if err := s.Chores.DeleteChore(ctx, middleware.GetUserID(ctx), req.Msg.ChoreID); err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&DeleteChoreResponse{}), nil
}

func (s *Server) getChoreBalance(ctx context.Context, _ *connect.Request[GetChoreBalanceRequest]) (*connect.Response[GetChoreBalanceResponse], error) {
	balance, err := s.Chores.ChoreBalance(ctx, middleware.GetUserID(ctx))
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&GetChoreBalanceResponse{Members: balance.Members, Catchups: balance.Catchups}), nil
}

func (s *Server) sendThankYou(ctx context.Context, req *connect.Request[SendThankYouRequest]) (*connect.Response[ThankYouResponse], error) {
	msg, err := s.Thanks.SendThankYou(ctx, middleware.GetUserID(ctx), *req.Msg)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ThankYouResponse{ThankYou: msg}), nil
}

func (s *Server) sendThankYouForCompletion(ctx context.Context, req *connect.Request[SendThankYouForCompletionRequest]) (*connect.Response[ThankYouResponse], error) {
	msg, err := s.Thanks.SendThankYouForChore(ctx, middleware.GetUserID(ctx), req.Msg.CompletionID, service.SendThankYouInput{Message: req.Msg.Message})
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ThankYouResponse{ThankYou: msg}), nil
}

func (s *Server) getHistory(ctx context.Context, req *connect.Request[GetHistoryRequest]) (*connect.Response[GetHistoryResponse], error) {
	msgs, err := s.Thanks.GetThankYouHistory(ctx, middleware.GetUserID(ctx), *req.Msg)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&GetHistoryResponse{ThankYous: msgs}), nil
}

func (s *Server) getStats(ctx context.Context, _ *connect.Request[GetStatsRequest]) (*connect.Response[GetStatsResponse], error) {
	stats, err := s.Thanks.GetThankYouStats(ctx, middleware.GetUserID(ctx))
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&GetStatsResponse{Stats: stats}), nil
}
