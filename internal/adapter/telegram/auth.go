package telegram

import (
	"context"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// termAuth bridges gotd's auth flow to the AuthInput prompts, so the login
// conversation (phone, code, optional 2FA password) runs through whatever
// console the caller wired in.
type termAuth struct {
	input AuthInput
}

func (t termAuth) Phone(_ context.Context) (string, error) {
	return t.input.GetPhoneNumber()
}

func (t termAuth) Password(_ context.Context) (string, error) {
	return t.input.GetPassword()
}

// AcceptTermsOfService accepts implicitly; there is no interactive surface
// for reviewing the terms mid-login.
func (t termAuth) AcceptTermsOfService(_ context.Context, tos tg.HelpTermsOfService) error {
	return nil
}

func (t termAuth) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	return t.input.GetCode()
}

// SignUp is unsupported: the mirror reads an existing account, it never
// creates one.
func (t termAuth) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, nil
}
