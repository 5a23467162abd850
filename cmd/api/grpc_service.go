package main

import (
	"context"
	"time"

	"github.com/PaulBabatuyi/pairchat/internal/apperr"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"google.golang.org/grpc"
)

const serviceName = "chat.v1.ChatService"

// Full method names, used by the interceptors.
const (
	methodLogin        = "/" + serviceName + "/Login"
	methodListContacts = "/" + serviceName + "/ListContacts"
	methodListChats    = "/" + serviceName + "/ListChats"
	methodGetMessages  = "/" + serviceName + "/GetMessages"
	methodPostMessage  = "/" + serviceName + "/PostMessage"
)

type LoginRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

// GetPhone lets the rate limiter key Login by phone.
func (r *LoginRequest) GetPhone() string { return r.Phone }

type LoginResponse struct {
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ListContactsRequest struct{}

type ListContactsResponse struct {
	Contacts []data.Contact `json:"contacts"`
}

type ListChatsRequest struct{}

type ListChatsResponse struct {
	Chats []data.ChatSummary `json:"chats"`
}

type GetMessagesRequest struct {
	ContactID int64 `json:"contact_id"`
}

type GetMessagesResponse struct {
	Messages []data.Message `json:"messages"`
}

type PostMessageRequest struct {
	ContactID int64  `json:"contact_id"`
	Message   string `json:"message"`
}

type PostMessageResponse struct {
	Message *data.Message `json:"message"`
}

// chatServiceServer is the handler type checked by RegisterService.
type chatServiceServer interface {
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	ListContacts(context.Context, *ListContactsRequest) (*ListContactsResponse, error)
	ListChats(context.Context, *ListChatsRequest) (*ListChatsResponse, error)
	GetMessages(context.Context, *GetMessagesRequest) (*GetMessagesResponse, error)
	PostMessage(context.Context, *PostMessageRequest) (*PostMessageResponse, error)
}

var _ chatServiceServer = (*Server)(nil)

var chatServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*chatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Login", Handler: unaryHandler(methodLogin, chatServiceServer.Login)},
		{MethodName: "ListContacts", Handler: unaryHandler(methodListContacts, chatServiceServer.ListContacts)},
		{MethodName: "ListChats", Handler: unaryHandler(methodListChats, chatServiceServer.ListChats)},
		{MethodName: "GetMessages", Handler: unaryHandler(methodGetMessages, chatServiceServer.GetMessages)},
		{MethodName: "PostMessage", Handler: unaryHandler(methodPostMessage, chatServiceServer.PostMessage)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "chat/v1/chat.proto",
}

// unaryHandler builds the decode-and-dispatch function grpc-go expects for a
// unary method, running the chained interceptors when present.
func unaryHandler[Req, Resp any](fullMethod string, call func(chatServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		impl := srv.(chatServiceServer)
		if interceptor == nil {
			return call(impl, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(impl, ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Login finds or registers the user and returns a signed session token.
func (s *Server) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	caller, err := s.chat.Login(ctx, req.Phone, req.Name)
	if err != nil {
		return nil, apperr.ToGRPCStatus(err)
	}
	token, expiresAt, err := s.issueSession(caller)
	if err != nil {
		return nil, apperr.ToGRPCStatus(apperr.Wrap(apperr.CodeInternal, "generate token", err))
	}
	return &LoginResponse{
		UserID:    caller.UserID,
		Name:      caller.Name,
		Phone:     caller.Phone,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// ListContacts returns every other registered user.
func (s *Server) ListContacts(ctx context.Context, _ *ListContactsRequest) (*ListContactsResponse, error) {
	contacts, err := s.chat.ListContacts(ctx, callerFromContext(ctx))
	if err != nil {
		return nil, apperr.ToGRPCStatus(err)
	}
	return &ListContactsResponse{Contacts: contacts}, nil
}

// ListChats returns the caller's chats, most recent first.
func (s *Server) ListChats(ctx context.Context, _ *ListChatsRequest) (*ListChatsResponse, error) {
	chats, err := s.chat.ListChats(ctx, callerFromContext(ctx))
	if err != nil {
		return nil, apperr.ToGRPCStatus(err)
	}
	return &ListChatsResponse{Chats: chats}, nil
}

// GetMessages returns the conversation with the requested contact.
func (s *Server) GetMessages(ctx context.Context, req *GetMessagesRequest) (*GetMessagesResponse, error) {
	msgs, err := s.chat.GetMessages(ctx, callerFromContext(ctx), req.ContactID)
	if err != nil {
		return nil, apperr.ToGRPCStatus(err)
	}
	return &GetMessagesResponse{Messages: msgs}, nil
}

// PostMessage stores a message for the requested contact.
func (s *Server) PostMessage(ctx context.Context, req *PostMessageRequest) (*PostMessageResponse, error) {
	msg, err := s.chat.PostMessage(ctx, callerFromContext(ctx), req.ContactID, req.Message)
	if err != nil {
		return nil, apperr.ToGRPCStatus(err)
	}
	return &PostMessageResponse{Message: msg}, nil
}
