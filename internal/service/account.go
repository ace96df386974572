package service

import (
	"context"

	v1 "github.com/Sophix-ma/Mindra/api/sidebar/v1"
	"github.com/Sophix-ma/Mindra/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// AccountService 账号接口
type AccountService struct {
	uc  *biz.AccountUseCase
	log *log.Helper
}

// NewAccountService 创建 AccountService
func NewAccountService(uc *biz.AccountUseCase, logger log.Logger) *AccountService {
	return &AccountService{
		uc:  uc,
		log: log.NewHelper(logger),
	}
}

// Register 注册账号
func (s *AccountService) Register(ctx context.Context, req *v1.RegisterRequest) (*v1.RegisterReply, error) {
	user, err := s.uc.Register(ctx, req.Username, req.Password, req.ActivationCode)
	if err != nil {
		s.log.Errorf("Register failed: username=%s, error=%v", req.Username, err)
		return nil, err
	}
	return &v1.RegisterReply{
		UserId:   user.UserID,
		Username: user.Username,
		Balance:  user.Balance,
	}, nil
}

// Login 登录并签发令牌
func (s *AccountService) Login(ctx context.Context, req *v1.LoginRequest) (*v1.LoginReply, error) {
	user, token, err := s.uc.Login(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}
	return &v1.LoginReply{
		UserId:   user.UserID,
		Username: user.Username,
		Balance:  user.Balance,
		Token:    token,
	}, nil
}

// ChangeUsername 修改用户名
func (s *AccountService) ChangeUsername(ctx context.Context, userID string, req *v1.ChangeUsernameRequest) (*v1.EmptyReply, error) {
	if err := s.uc.ChangeUsername(ctx, userID, req.CurrentPassword, req.NewUsername); err != nil {
		s.log.Errorf("ChangeUsername failed: userID=%s, error=%v", userID, err)
		return nil, err
	}
	return &v1.EmptyReply{}, nil
}

// ChangePassword 修改密码
func (s *AccountService) ChangePassword(ctx context.Context, userID string, req *v1.ChangePasswordRequest) (*v1.EmptyReply, error) {
	if err := s.uc.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword); err != nil {
		s.log.Errorf("ChangePassword failed: userID=%s, error=%v", userID, err)
		return nil, err
	}
	return &v1.EmptyReply{}, nil
}

// VerifyToken 校验请求携带的登录令牌，返回用户标识
func (s *AccountService) VerifyToken(token string) (string, error) {
	return s.uc.VerifyToken(token)
}
