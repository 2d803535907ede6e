package crawler_test

import "github.com/stretchr/testify/mock"

// Explorer
type mockExplorer struct {
	mock.Mock
}

func (m *mockExplorer) GetTransactionConfirmations(txid string) (int, error) {
	args := m.Called(txid)
	return args.Int(0), args.Error(1)
}
