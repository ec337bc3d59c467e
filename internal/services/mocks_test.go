package services

import (
	"github.com/stretchr/testify/mock"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(to, subject, body string) error {
	args := m.Called(to, subject, body)
	return args.Error(0)
}
