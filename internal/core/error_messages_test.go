package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/JonMunkholm/crmsync/internal/crm"
	"github.com/JonMunkholm/crmsync/internal/records"
)

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "nil error returns empty",
			err:      nil,
			wantCode: "",
		},
		{
			name:     "rejected login",
			err:      &crm.AuthError{Status: "error"},
			wantCode: "AUTH001",
		},
		{
			name:     "malformed login response",
			err:      &crm.AuthError{Malformed: true},
			wantCode: "AUTH002",
		},
		{
			name:     "unparseable save response",
			err:      fmt.Errorf("line 7: %w", &crm.ProtocolError{Op: "save", Reason: crm.ReasonUnparseable}),
			wantCode: "PROTO001",
		},
		{
			name:     "delete without child element",
			err:      &crm.ProtocolError{Op: "delete", Reason: crm.ReasonMissingElement},
			wantCode: "PROTO002",
		},
		{
			name:     "delete without attributes",
			err:      &crm.ProtocolError{Op: "delete", Reason: crm.ReasonMissingAttributes},
			wantCode: "PROTO003",
		},
		{
			name:     "http status",
			err:      &crm.ProtocolError{Op: "describe", Reason: crm.ReasonHTTPStatus, Status: 500},
			wantCode: "PROTO004",
		},
		{
			name:     "connection refused",
			err:      &crm.TransportError{Op: "save", Err: errors.New("dial tcp: connection refused")},
			wantCode: "NET001",
		},
		{
			name:     "client timeout",
			err:      &crm.TransportError{Op: "save", Err: &url.Error{Op: "Get", URL: "x", Err: timeoutErr{}}},
			wantCode: "NET002",
		},
		{
			name:     "cancelled during a call",
			err:      &crm.TransportError{Op: "save", Err: &url.Error{Op: "Get", URL: "x", Err: context.Canceled}},
			wantCode: "RUN001",
		},
		{
			name:     "dialect",
			err:      &records.InputFormatError{Path: "a.csv", Kind: records.KindDialect, Msg: "x"},
			wantCode: "INPUT001",
		},
		{
			name:     "header",
			err:      &records.InputFormatError{Path: "a.csv", Kind: records.KindHeader, Msg: "x"},
			wantCode: "INPUT002",
		},
		{
			name:     "columns",
			err:      &records.InputFormatError{Path: "a.csv", Kind: records.KindColumns, Msg: "x"},
			wantCode: "INPUT003",
		},
		{
			name:     "row",
			err:      &records.InputFormatError{Path: "a.csv", Kind: records.KindRow, Line: 4, Msg: "x"},
			wantCode: "INPUT004",
		},
		{
			name:     "unreadable",
			err:      &records.InputFormatError{Path: "a.csv", Kind: records.KindUnreadable, Msg: "x"},
			wantCode: "INPUT005",
		},
		{
			name:     "output",
			err:      &records.OutputError{Path: "a-1.csv", Op: "write row", Err: errors.New("no space left")},
			wantCode: "OUTPUT001",
		},
		{
			name:     "row-local rejection",
			err:      &RemoteOperationError{Line: 2, Op: "save"},
			wantCode: "REM001",
		},
		{
			name:     "config",
			err:      errors.New("config load: required environment variables not set: CRM_BASE_URL"),
			wantCode: "CFG001",
		},
		{
			name:     "case insensitive pattern",
			err:      errors.New("Config Validation: bad"),
			wantCode: "CFG001",
		},
		{
			name:     "unknown error returns default",
			err:      errors.New("some random internal error"),
			wantCode: "ERR000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.err != nil && got.Message == "" {
				t.Error("MapError() message is empty")
			}
		})
	}
}

func TestUserError_Display(t *testing.T) {
	err := fmt.Errorf("authenticate: %w", &crm.AuthError{Status: "error"})
	result := NewUserError(err).Display()

	expected := "Login was rejected (Code: AUTH001). Check the email address and password"
	if result != expected {
		t.Errorf("Display() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error is not user facing",
			err:  nil,
			want: false,
		},
		{
			name: "typed error is user facing",
			err:  &records.OutputError{Op: "create", Err: errors.New("denied")},
			want: true,
		},
		{
			name: "unknown error is not user facing",
			err:  errors.New("random internal error xyz"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsUserFacing(tt.err)
			if got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := &crm.TransportError{Op: "describe", Err: errors.New("connection reset")}
		userErr := NewUserError(techErr)

		if userErr.Error() != "The remote server could not be reached" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if userErr.User.Code != "NET001" {
			t.Errorf("Code = %q, want NET001", userErr.User.Code)
		}
		if !errors.Is(userErr, techErr) {
			t.Error("Unwrap() should return original error")
		}
	})
}
