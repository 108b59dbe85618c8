package loan

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"loan-schedule-engine/internal/pkg/apperrors"
	"loan-schedule-engine/internal/pkg/mathctx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

type serviceMocks struct {
	repo      *MockRepository
	cache     *MockScheduleCache
	publisher *MockEventPublisher
}

func newTestService() (*scheduleServiceImpl, serviceMocks) {
	m := serviceMocks{
		repo:      new(MockRepository),
		cache:     new(MockScheduleCache),
		publisher: new(MockEventPublisher),
	}
	svc := NewScheduleService(m.repo, m.cache, m.publisher, mathctx.Default, logger).(*scheduleServiceImpl)
	svc.now = func() time.Time { return generatedAt }
	return svc, m
}

func (m serviceMocks) assertExpectations(t *testing.T) {
	m.repo.AssertExpectations(t)
	m.cache.AssertExpectations(t)
	m.publisher.AssertExpectations(t)
}

func TestCreateLoan(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		svc, mocks := newTestService()
		mocks.repo.On("CreateLoan", ctx, mock.AnythingOfType("*loan.Loan")).
			Return(func(_ context.Context, l *Loan) *Loan {
				l.ID = 42
				return l
			}, nil).Once()

		created, err := svc.CreateLoan(ctx, monthlyParams("7", 6))

		require.NoError(t, err)
		assert.Equal(t, int64(42), created.ID)
		mocks.assertExpectations(t)
	})

	t.Run("invalid terms are not persisted", func(t *testing.T) {
		svc, mocks := newTestService()

		_, err := svc.CreateLoan(ctx, monthlyParams("7", 0))

		assert.True(t, errors.Is(err, apperrors.ErrValidation))
		mocks.repo.AssertNotCalled(t, "CreateLoan", mock.Anything, mock.Anything)
	})

	t.Run("repository failure", func(t *testing.T) {
		svc, mocks := newTestService()
		mocks.repo.On("CreateLoan", ctx, mock.Anything).Return(nil, apperrors.ErrDatabase).Once()

		_, err := svc.CreateLoan(ctx, monthlyParams("7", 6))

		assert.True(t, errors.Is(err, apperrors.ErrDatabase))
	})
}

func TestGetLoan(t *testing.T) {
	ctx := context.Background()
	svc, mocks := newTestService()
	mocks.repo.On("GetLoanByID", ctx, int64(99)).Return(nil, apperrors.ErrNotFound).Once()

	_, err := svc.GetLoan(ctx, 99)

	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	mocks.assertExpectations(t)
}

func TestPostTransaction(t *testing.T) {
	ctx := context.Background()
	firstDisbursement := Transaction{ID: 1, LoanID: 5, Type: TxDisbursement, TransactionDate: date("2024-01-01"), Amount: dec("100")}

	t.Run("second disbursement recalculates and publishes", func(t *testing.T) {
		svc, mocks := newTestService()
		l := newTestLoan(t, 5, "9.4822", 6)
		tx := Transaction{Type: TxDisbursement, TransactionDate: date("2024-03-01"), Amount: dec("100")}

		mocks.repo.On("GetLoanByID", ctx, int64(5)).Return(l, nil).Once()
		mocks.repo.On("ListTransactions", ctx, int64(5)).Return([]Transaction{firstDisbursement}, nil).Once()
		mocks.repo.On("AddTransaction", ctx, mock.MatchedBy(func(tx *Transaction) bool {
			return tx.LoanID == 5 && tx.ID == 0
		})).Return(&Transaction{ID: 2, LoanID: 5, Type: TxDisbursement, TransactionDate: date("2024-03-01"), Amount: dec("100")}, nil).Once()
		mocks.repo.On("SaveScheduleSnapshot", ctx, mock.MatchedBy(func(s *ScheduleSnapshot) bool {
			return s.LoanID == 5 && s.Periods[2].EMI.Equal(dec("42.63")) && s.Periods[5].EMI.Equal(dec("42.61"))
		})).Return(nil).Once()
		mocks.cache.On("Invalidate", ctx, int64(5)).Return(nil).Once()
		mocks.publisher.On("PublishScheduleRecalculated", ctx, mock.MatchedBy(func(e ScheduleRecalculatedEvent) bool {
			return e.LoanID == 5 && e.EMI.Equal(dec("17.13")) && e.OutstandingBalance.Equal(dec("200")) && e.PeriodCount == 6
		})).Return(nil).Once()

		saved, err := svc.PostTransaction(ctx, 5, tx)

		require.NoError(t, err)
		assert.Equal(t, int64(2), saved.ID)
		mocks.assertExpectations(t)
	})

	t.Run("cache and publisher failures do not fail the posting", func(t *testing.T) {
		svc, mocks := newTestService()
		l := newTestLoan(t, 5, "7", 6)

		mocks.repo.On("GetLoanByID", ctx, int64(5)).Return(l, nil).Once()
		mocks.repo.On("ListTransactions", ctx, int64(5)).Return([]Transaction{}, nil).Once()
		mocks.repo.On("AddTransaction", ctx, mock.Anything).Return(&firstDisbursement, nil).Once()
		mocks.repo.On("SaveScheduleSnapshot", ctx, mock.Anything).Return(nil).Once()
		mocks.cache.On("Invalidate", ctx, int64(5)).Return(errors.New("redis down")).Once()
		mocks.publisher.On("PublishScheduleRecalculated", ctx, mock.Anything).Return(errors.New("channel closed")).Once()

		_, err := svc.PostTransaction(ctx, 5, Transaction{Type: TxDisbursement, TransactionDate: date("2024-01-01"), Amount: dec("100")})

		assert.NoError(t, err)
		mocks.assertExpectations(t)
	})

	t.Run("closed loan", func(t *testing.T) {
		svc, mocks := newTestService()
		l := newTestLoan(t, 5, "7", 6)
		l.Status = StatusClosed
		mocks.repo.On("GetLoanByID", ctx, int64(5)).Return(l, nil).Once()

		_, err := svc.PostTransaction(ctx, 5, Transaction{Type: TxDisbursement, TransactionDate: date("2024-02-01"), Amount: dec("10")})

		assert.True(t, errors.Is(err, apperrors.ErrLoanClosed))
		mocks.repo.AssertNotCalled(t, "AddTransaction", mock.Anything, mock.Anything)
	})

	t.Run("transaction outside the schedule is not stored", func(t *testing.T) {
		svc, mocks := newTestService()
		l := newTestLoan(t, 5, "7", 6)
		mocks.repo.On("GetLoanByID", ctx, int64(5)).Return(l, nil).Once()
		mocks.repo.On("ListTransactions", ctx, int64(5)).Return([]Transaction{firstDisbursement}, nil).Once()

		_, err := svc.PostTransaction(ctx, 5, Transaction{Type: TxDisbursement, TransactionDate: date("2024-08-01"), Amount: dec("10")})

		assert.True(t, errors.Is(err, apperrors.ErrInvalidScheduleInput), "got %v", err)
		mocks.repo.AssertNotCalled(t, "AddTransaction", mock.Anything, mock.Anything)
	})

	t.Run("invalid transaction", func(t *testing.T) {
		svc, mocks := newTestService()

		_, err := svc.PostTransaction(ctx, 5, Transaction{Type: TxDisbursement, TransactionDate: date("2024-02-01"), Amount: dec("-10")})

		assert.True(t, errors.Is(err, apperrors.ErrValidation))
		mocks.repo.AssertNotCalled(t, "GetLoanByID", mock.Anything, mock.Anything)
	})
}

func TestListTransactions(t *testing.T) {
	ctx := context.Background()
	svc, mocks := newTestService()
	l := newTestLoan(t, 5, "7", 6)
	mocks.repo.On("GetLoanByID", ctx, int64(5)).Return(l, nil).Once()
	mocks.repo.On("ListTransactions", ctx, int64(5)).Return([]Transaction{
		{ID: 2, TransactionDate: date("2024-03-01")},
		{ID: 1, TransactionDate: date("2024-01-01")},
	}, nil).Once()

	txs, err := svc.ListTransactions(ctx, 5)

	require.NoError(t, err)
	assert.Equal(t, int64(1), txs[0].ID)
	mocks.assertExpectations(t)
}

func TestGetSchedule(t *testing.T) {
	ctx := context.Background()

	t.Run("served from cache", func(t *testing.T) {
		svc, mocks := newTestService()
		cached := &ScheduleSnapshot{LoanID: 5}
		mocks.cache.On("Get", ctx, int64(5)).Return(cached, nil).Once()

		got, err := svc.GetSchedule(ctx, 5)

		require.NoError(t, err)
		assert.Same(t, cached, got)
		mocks.repo.AssertNotCalled(t, "GetLoanByID", mock.Anything, mock.Anything)
	})

	t.Run("cache miss replays and stores", func(t *testing.T) {
		svc, mocks := newTestService()
		l := newTestLoan(t, 5, "7", 1)
		mocks.cache.On("Get", ctx, int64(5)).Return(nil, apperrors.ErrCacheMiss).Once()
		mocks.repo.On("GetLoanByID", ctx, int64(5)).Return(l, nil).Once()
		mocks.repo.On("ListTransactions", ctx, int64(5)).Return([]Transaction{
			{ID: 1, Type: TxDisbursement, TransactionDate: date("2024-01-01"), Amount: dec("1000")},
		}, nil).Once()
		mocks.cache.On("Set", ctx, mock.AnythingOfType("*loan.ScheduleSnapshot")).Return(nil).Once()

		got, err := svc.GetSchedule(ctx, 5)

		require.NoError(t, err)
		assert.True(t, got.Periods[0].EMI.Equal(dec("1005.83")))
		assert.Equal(t, generatedAt, got.GeneratedAt)
		mocks.assertExpectations(t)
	})
}

func TestGetDueAmounts(t *testing.T) {
	ctx := context.Background()
	svc, mocks := newTestService()
	l := newTestLoan(t, 5, "7", 6)
	mocks.repo.On("GetLoanByID", ctx, int64(5)).Return(l, nil).Once()
	mocks.repo.On("ListTransactions", ctx, int64(5)).Return([]Transaction{
		{ID: 1, Type: TxDisbursement, TransactionDate: date("2024-01-01"), Amount: dec("100")},
	}, nil).Once()

	due, err := svc.GetDueAmounts(ctx, 5, date("2024-03-01"), date("2024-02-15"))

	require.NoError(t, err)
	assert.True(t, due.Principal.Equal(dec("16.77")), "principal %s", due.Principal)
	assert.True(t, due.Interest.Equal(dec("0.24")), "interest %s", due.Interest)
	mocks.assertExpectations(t)
}

func TestRecalculateSchedule(t *testing.T) {
	ctx := context.Background()

	t.Run("settled loan is closed", func(t *testing.T) {
		svc, mocks := newTestService()
		l := newTestLoan(t, 8, "7", 1)
		mocks.repo.On("GetLoanByID", ctx, int64(8)).Return(l, nil).Once()
		mocks.repo.On("ListTransactions", ctx, int64(8)).Return([]Transaction{
			{ID: 1, Type: TxDisbursement, TransactionDate: date("2024-01-01"), Amount: dec("1000")},
			{ID: 2, Type: TxPrincipalPayment, TransactionDate: date("2024-02-01"), PeriodDueDate: date("2024-02-01"), Amount: dec("1000")},
			{ID: 3, Type: TxInterestPayment, TransactionDate: date("2024-02-01"), PeriodDueDate: date("2024-02-01"), Amount: dec("5.83")},
		}, nil).Once()
		mocks.repo.On("SaveScheduleSnapshot", ctx, mock.Anything).Return(nil).Once()
		mocks.repo.On("UpdateLoanStatus", ctx, int64(8), StatusClosed).Return(nil).Once()
		mocks.publisher.On("PublishScheduleRecalculated", ctx, mock.Anything).Return(nil).Once()
		mocks.cache.On("Set", ctx, mock.Anything).Return(nil).Once()

		snapshot, err := svc.RecalculateSchedule(ctx, 8)

		require.NoError(t, err)
		assert.True(t, snapshot.IsSettled())
		assert.Equal(t, StatusClosed, l.Status)
		mocks.assertExpectations(t)
	})

	t.Run("open loan stays active", func(t *testing.T) {
		svc, mocks := newTestService()
		l := newTestLoan(t, 8, "7", 6)
		mocks.repo.On("GetLoanByID", ctx, int64(8)).Return(l, nil).Once()
		mocks.repo.On("ListTransactions", ctx, int64(8)).Return([]Transaction{
			{ID: 1, Type: TxDisbursement, TransactionDate: date("2024-01-01"), Amount: dec("100")},
		}, nil).Once()
		mocks.repo.On("SaveScheduleSnapshot", ctx, mock.Anything).Return(nil).Once()
		mocks.publisher.On("PublishScheduleRecalculated", ctx, mock.Anything).Return(nil).Once()
		mocks.cache.On("Set", ctx, mock.Anything).Return(nil).Once()

		_, err := svc.RecalculateSchedule(ctx, 8)

		require.NoError(t, err)
		mocks.repo.AssertNotCalled(t, "UpdateLoanStatus", mock.Anything, mock.Anything, mock.Anything)
		mocks.assertExpectations(t)
	})

	t.Run("save failure", func(t *testing.T) {
		svc, mocks := newTestService()
		l := newTestLoan(t, 8, "7", 6)
		mocks.repo.On("GetLoanByID", ctx, int64(8)).Return(l, nil).Once()
		mocks.repo.On("ListTransactions", ctx, int64(8)).Return([]Transaction{}, nil).Once()
		mocks.repo.On("SaveScheduleSnapshot", ctx, mock.Anything).Return(apperrors.ErrDatabase).Once()

		_, err := svc.RecalculateSchedule(ctx, 8)

		assert.True(t, errors.Is(err, apperrors.ErrDatabase))
		mocks.publisher.AssertNotCalled(t, "PublishScheduleRecalculated", mock.Anything, mock.Anything)
	})
}
