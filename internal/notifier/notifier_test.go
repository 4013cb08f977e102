package notifier

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/replyscout/internal/config"
	"github.com/ibeckermayer/replyscout/internal/report"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(to, subject, htmlBody, plainBody string) error {
	return m.Called(to, subject, htmlBody, plainBody).Error(0)
}

func TestSendReport(t *testing.T) {
	s := new(mockSender)
	s.On("Send", "ops@example.com", "subj", "<p>x</p>", "x").Return(nil).Once()

	n := New(s, "ops@example.com")
	require.NoError(t, n.SendReport(&report.Report{Subject: "subj", HTMLBody: "<p>x</p>", PlainBody: "x"}))
	s.AssertExpectations(t)
}

func TestSendReport_Error(t *testing.T) {
	s := new(mockSender)
	s.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	err := New(s, "ops@example.com").SendReport(&report.Report{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ops@example.com")
}

func TestNewFromConfig(t *testing.T) {
	_, err := NewFromConfig(config.EmailConfig{})
	assert.ErrorIs(t, err, ErrDisabled)

	n, err := NewFromConfig(config.EmailConfig{SMTPHost: "smtp.example.com", SMTPPort: 587, ToAddr: "ops@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", n.to)
}
