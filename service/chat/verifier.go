package chat

import (
	"context"

	"github.com/pkg/errors"

	"github.com/harbor-im/harbor/logger"
	"github.com/harbor-im/harbor/service/storage"
	"github.com/harbor-im/harbor/tools/errs"
	"github.com/harbor-im/harbor/tools/security"
)

// CredentialVerifier resolves a bearer token to a user record. The returned
// CodeError is one of the terminal auth codes.
type CredentialVerifier interface {
	Verify(ctx context.Context, token string) (*storage.User, *errs.CodeError)
}

// JWTVerifier validates HMAC-signed bearer tokens whose subject is the user
// id, then resolves the subject against the user store.
type JWTVerifier struct {
	opts  security.Options
	users storage.UserStore
}

func NewJWTVerifier(opts security.Options, users storage.UserStore) *JWTVerifier {
	return &JWTVerifier{opts: opts, users: users}
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (*storage.User, *errs.CodeError) {
	token = security.StripBearer(token)
	if token == "" {
		return nil, errs.ErrNoToken
	}

	sub, err := security.Verify(v.opts, token)
	if err != nil {
		if errors.Is(err, security.ErrExpired) {
			return nil, errs.ErrTokenExpired
		}
		return nil, errs.ErrInvalidToken
	}

	user, err := v.users.GetUser(ctx, sub)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errs.ErrUserNotFound
		}
		logger.Errorf("[verifier] resolve user %s: %v", sub, err)
		return nil, errs.ErrAuthFailed
	}
	return user, nil
}
