package biz

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/Sophix-ma/Mindra/internal/conf"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

type fakeUserRepo struct {
	users     map[string]*User // username → user
	passwords map[string]string
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:     make(map[string]*User),
		passwords: make(map[string]string),
	}
}

func (r *fakeUserRepo) CreateUser(ctx context.Context, user *User, hashedPassword string) error {
	if _, ok := r.users[user.Username]; ok {
		return errors.New("duplicate username")
	}
	r.users[user.Username] = user
	r.passwords[user.Username] = hashedPassword
	return nil
}

func (r *fakeUserRepo) GetUserByCredentials(ctx context.Context, username, hashedPassword string) (*User, error) {
	user, ok := r.users[username]
	if !ok || r.passwords[username] != hashedPassword {
		return nil, nil
	}
	return user, nil
}

func (r *fakeUserRepo) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return r.users[username], nil
}

func (r *fakeUserRepo) UpdateUsername(ctx context.Context, userID, hashedPassword, newUsername string) error {
	for name, u := range r.users {
		if u.UserID == userID && r.passwords[name] == hashedPassword {
			delete(r.users, name)
			pw := r.passwords[name]
			delete(r.passwords, name)
			u.Username = newUsername
			r.users[newUsername] = u
			r.passwords[newUsername] = pw
			return nil
		}
	}
	return errors.New("wrong credentials")
}

func (r *fakeUserRepo) UpdatePassword(ctx context.Context, userID, oldHashedPassword, newHashedPassword string) error {
	for name, u := range r.users {
		if u.UserID == userID && r.passwords[name] == oldHashedPassword {
			r.passwords[name] = newHashedPassword
			return nil
		}
	}
	return errors.New("wrong credentials")
}

func newTestAccount(t *testing.T) (*AccountUseCase, *fakeUserRepo) {
	t.Helper()
	repo := newFakeUserRepo()
	uc := NewAccountUseCase(repo, &conf.Bootstrap{
		Auth:    &conf.Auth{JwtSecret: "test-secret", ActivationCode: "CODE42"},
		Billing: &conf.Billing{InitialBalance: 10.0},
	}, log.NewStdLogger(io.Discard))
	return uc, repo
}

func TestRegisterAndLogin(t *testing.T) {
	uc, _ := newTestAccount(t)
	ctx := context.Background()

	user, err := uc.Register(ctx, "alice", "secret", "CODE42")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.UserID == "" {
		t.Fatal("expected generated user id")
	}
	if user.Balance != 10.0 {
		t.Fatalf("balance = %v, want 10.0", user.Balance)
	}

	logged, token, err := uc.Login(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.UserID != user.UserID {
		t.Fatalf("user id mismatch: %q vs %q", logged.UserID, user.UserID)
	}

	sub, err := uc.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if sub != user.UserID {
		t.Fatalf("token sub = %q, want %q", sub, user.UserID)
	}
}

func TestRegister_BadActivationCode(t *testing.T) {
	uc, _ := newTestAccount(t)
	_, err := uc.Register(context.Background(), "alice", "secret", "WRONG")
	if err == nil {
		t.Fatal("expected error")
	}
	if kerrors.FromError(err).Reason != "BAD_ACTIVATION_CODE" {
		t.Fatalf("reason = %q", kerrors.FromError(err).Reason)
	}
}

func TestRegister_UsernameTaken(t *testing.T) {
	uc, _ := newTestAccount(t)
	ctx := context.Background()
	if _, err := uc.Register(ctx, "alice", "secret", "CODE42"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := uc.Register(ctx, "alice", "other", "CODE42")
	if err == nil || kerrors.FromError(err).Reason != "USERNAME_TAKEN" {
		t.Fatalf("err = %v", err)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	uc, _ := newTestAccount(t)
	ctx := context.Background()
	if _, err := uc.Register(ctx, "alice", "secret", "CODE42"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, _, err := uc.Login(ctx, "alice", "wrong")
	if err == nil || kerrors.FromError(err).Reason != "WRONG_CREDENTIALS" {
		t.Fatalf("err = %v", err)
	}
}

func TestVerifyToken_Garbage(t *testing.T) {
	uc, _ := newTestAccount(t)
	if _, err := uc.VerifyToken("not-a-token"); err == nil {
		t.Fatal("expected error for garbage token")
	}
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	uc, _ := newTestAccount(t)
	other := NewAccountUseCase(newFakeUserRepo(), &conf.Bootstrap{
		Auth: &conf.Auth{JwtSecret: "other-secret"},
	}, log.NewStdLogger(io.Discard))

	ctx := context.Background()
	if _, err := uc.Register(ctx, "alice", "secret", "CODE42"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, token, err := uc.Login(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := other.VerifyToken(token); err == nil {
		t.Fatal("token signed with different secret must not verify")
	}
}

func TestChangePassword(t *testing.T) {
	uc, _ := newTestAccount(t)
	ctx := context.Background()
	user, err := uc.Register(ctx, "alice", "secret", "CODE42")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := uc.ChangePassword(ctx, user.UserID, "secret", "newpass"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, _, err := uc.Login(ctx, "alice", "newpass"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, _, err := uc.Login(ctx, "alice", "secret"); err == nil {
		t.Fatal("old password must not work")
	}
}

func TestHashPassword(t *testing.T) {
	// sha256 十六进制小写，与既有存量数据兼容
	if got := HashPassword("password"); got != "5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8" {
		t.Fatalf("hash = %q", got)
	}
}
