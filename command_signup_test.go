package authclient_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/goliatone/go-authclient"
)

func TestSignupMessageValidate(t *testing.T) {
	valid := authclient.SignupMessage{
		Name:     "Test User",
		Email:    "test@example.com",
		Password: "password123",
		Company:  "Acme Inc",
		Phone:    "+14155552671",
	}

	tests := []struct {
		name    string
		mutate  func(m *authclient.SignupMessage)
		wantErr bool
	}{
		{
			name:    "complete payload",
			mutate:  func(*authclient.SignupMessage) {},
			wantErr: false,
		},
		{
			name: "optional fields omitted",
			mutate: func(m *authclient.SignupMessage) {
				m.Company = ""
				m.Phone = ""
				m.Preferences = ""
			},
			wantErr: false,
		},
		{
			name:    "missing name",
			mutate:  func(m *authclient.SignupMessage) { m.Name = "" },
			wantErr: true,
		},
		{
			name:    "missing email",
			mutate:  func(m *authclient.SignupMessage) { m.Email = "" },
			wantErr: true,
		},
		{
			name:    "malformed email",
			mutate:  func(m *authclient.SignupMessage) { m.Email = "not-an-email" },
			wantErr: true,
		},
		{
			name:    "short password",
			mutate:  func(m *authclient.SignupMessage) { m.Password = "short" },
			wantErr: true,
		},
		{
			name:    "phone without country code",
			mutate:  func(m *authclient.SignupMessage) { m.Phone = "5552671" },
			wantErr: true,
		},
		{
			name:    "unparseable phone",
			mutate:  func(m *authclient.SignupMessage) { m.Phone = "not-a-phone" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := valid
			tt.mutate(&msg)

			err := msg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSignupMessageType(t *testing.T) {
	assert.Equal(t, "authclient.signup", authclient.SignupMessage{}.Type())
}
