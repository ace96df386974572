package data

import (
	"context"
	"testing"

	"github.com/Sophix-ma/Mindra/internal/biz"
)

func registerTestUser(t *testing.T, repo biz.UserRepo, userID, username, password string) {
	t.Helper()
	err := repo.CreateUser(context.Background(), &biz.User{
		UserID:   userID,
		Username: username,
		Balance:  10.0,
	}, biz.HashPassword(password))
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
}

func TestCreateAndGetUser(t *testing.T) {
	data := openTestData(t)
	repo := NewUserRepo(data, testLogger())
	registerTestUser(t, repo, "u1", "alice", "secret")

	user, err := repo.GetUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user == nil || user.UserID != "u1" || user.Balance != 10.0 {
		t.Fatalf("user = %+v", user)
	}
}

func TestGetUserByUsername_CaseSensitive(t *testing.T) {
	data := openTestData(t)
	repo := NewUserRepo(data, testLogger())
	registerTestUser(t, repo, "u1", "Alice", "secret")

	user, err := repo.GetUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user != nil {
		t.Fatalf("lookup must be case sensitive, got %+v", user)
	}
}

func TestGetUserByCredentials(t *testing.T) {
	data := openTestData(t)
	repo := NewUserRepo(data, testLogger())
	registerTestUser(t, repo, "u1", "alice", "secret")

	user, err := repo.GetUserByCredentials(context.Background(), "alice", biz.HashPassword("secret"))
	if err != nil {
		t.Fatalf("get by credentials: %v", err)
	}
	if user == nil || user.UserID != "u1" {
		t.Fatalf("user = %+v", user)
	}

	wrong, err := repo.GetUserByCredentials(context.Background(), "alice", biz.HashPassword("bad"))
	if err != nil {
		t.Fatalf("get by credentials: %v", err)
	}
	if wrong != nil {
		t.Fatal("wrong password must not match")
	}
}

func TestUpdateUsername(t *testing.T) {
	data := openTestData(t)
	repo := NewUserRepo(data, testLogger())
	registerTestUser(t, repo, "u1", "alice", "secret")

	// 密码不对时拒绝
	err := repo.UpdateUsername(context.Background(), "u1", biz.HashPassword("bad"), "bob")
	if err == nil {
		t.Fatal("expected error for wrong password")
	}

	if err := repo.UpdateUsername(context.Background(), "u1", biz.HashPassword("secret"), "bob"); err != nil {
		t.Fatalf("update username: %v", err)
	}
	user, err := repo.GetUserByUsername(context.Background(), "bob")
	if err != nil || user == nil {
		t.Fatalf("get renamed user: user=%v err=%v", user, err)
	}
}

func TestUpdatePassword(t *testing.T) {
	data := openTestData(t)
	repo := NewUserRepo(data, testLogger())
	registerTestUser(t, repo, "u1", "alice", "secret")

	if err := repo.UpdatePassword(context.Background(), "u1", biz.HashPassword("secret"), biz.HashPassword("newpass")); err != nil {
		t.Fatalf("update password: %v", err)
	}

	user, err := repo.GetUserByCredentials(context.Background(), "alice", biz.HashPassword("newpass"))
	if err != nil || user == nil {
		t.Fatalf("login with new password: user=%v err=%v", user, err)
	}
	old, _ := repo.GetUserByCredentials(context.Background(), "alice", biz.HashPassword("secret"))
	if old != nil {
		t.Fatal("old password must not match")
	}
}
