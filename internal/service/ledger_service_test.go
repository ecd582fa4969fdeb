package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spsc/goldledger/internal/domain"
	"github.com/spsc/goldledger/internal/store"
	apperrors "github.com/spsc/goldledger/pkg/errors"
)

var fixedNow = time.Date(2024, time.March, 10, 14, 30, 0, 0, time.UTC)

func newTestService(kv *MockKV, blobs *MockBlobStore) *LedgerService {
	return &LedgerService{
		kv:       kv,
		blobs:    blobs,
		cache:    NewEntryCache(),
		validate: domain.NewValidator(),
		now:      func() time.Time { return fixedNow },
	}
}

func validInput() domain.EntryInput {
	return domain.EntryInput{
		ApplicationNumber: "A1",
		Username:          "John Doe",
		Address:           "12 Temple Street, Madurai",
		GoldGramWeight:    decimal.RequireFromString("12.50"),
		Amount:            decimal.RequireFromString("1000.00"),
		StartDate:         "2024-01-15",
		EndDate:           "2024-07-15",
		PhoneNumber:       "5551234567",
	}
}

func seedCache(t *testing.T, svc *LedgerService, entries ...domain.LoanEntry) {
	t.Helper()

	snap := &store.Snapshot{Records: make(map[string]json.RawMessage, len(entries))}
	for _, e := range entries {
		raw, err := json.Marshal(e)
		require.NoError(t, err)
		snap.Keys = append(snap.Keys, e.ApplicationNumber)
		snap.Records[e.ApplicationNumber] = raw
	}
	svc.cache.ReplaceAll(snap)
}

func TestCreateEntry_Success(t *testing.T) {
	mockKV := &MockKV{}
	svc := newTestService(mockKV, &MockBlobStore{})

	mockKV.On("Exists", mock.Anything, store.CollectionEntries, "A1").Return(false, nil)
	mockKV.On("CreateOrReplace", mock.Anything, store.CollectionEntries, "A1", mock.MatchedBy(func(e *domain.LoanEntry) bool {
		return e.ApplicationNumber == "A1" &&
			e.BorrowedMoney.Equal(decimal.RequireFromString("1000.00")) &&
			e.ReceivedMoney.IsZero() &&
			e.PendingMoney.Equal(decimal.RequireFromString("1000.00")) &&
			len(e.PaymentHistory) == 0
	})).Return(nil)

	entry, err := svc.CreateEntry(context.Background(), validInput())

	assert.NoError(t, err)
	assert.Equal(t, "A1", entry.ApplicationNumber)
	assert.True(t, entry.PendingMoney.Equal(entry.BorrowedMoney))
	mockKV.AssertExpectations(t)
}

func TestCreateEntry_DuplicateKey(t *testing.T) {
	mockKV := &MockKV{}
	svc := newTestService(mockKV, &MockBlobStore{})

	mockKV.On("Exists", mock.Anything, store.CollectionEntries, "A1").Return(true, nil)

	entry, err := svc.CreateEntry(context.Background(), validInput())

	assert.Nil(t, entry)
	assert.ErrorIs(t, err, apperrors.ErrEntryExists)
	mockKV.AssertNotCalled(t, "CreateOrReplace", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateEntry_InvalidInput_NoWrite(t *testing.T) {
	mockKV := &MockKV{}
	svc := newTestService(mockKV, &MockBlobStore{})

	in := validInput()
	in.Username = "Jo"
	in.PhoneNumber = "123"

	entry, err := svc.CreateEntry(context.Background(), in)

	assert.Nil(t, entry)

	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)
	mockKV.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything, mock.Anything)
	mockKV.AssertNotCalled(t, "CreateOrReplace", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateEntry_ImmutableApplicationNumber(t *testing.T) {
	mockKV := &MockKV{}
	svc := newTestService(mockKV, &MockBlobStore{})

	in := validInput()
	err := svc.UpdateEntry(context.Background(), "B2", in)

	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "applicationNumber", verr.Fields[0].Field)
	mockKV.AssertNotCalled(t, "Patch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateEntry_PreservesPaymentState(t *testing.T) {
	mockKV := &MockKV{}
	svc := newTestService(mockKV, &MockBlobStore{})

	mockKV.On("Patch", mock.Anything, store.CollectionEntries, "A1", mock.MatchedBy(func(fields map[string]any) bool {
		_, hasHistory := fields["paymentHistory"]
		_, hasReceived := fields["receivedMoney"]
		_, hasPending := fields["pendingMoney"]
		_, hasBorrowed := fields["borrowedMoney"]
		return fields["username"] == "John Doe" && !hasHistory && !hasReceived && !hasPending && !hasBorrowed
	})).Return(nil)

	err := svc.UpdateEntry(context.Background(), "A1", validInput())

	assert.NoError(t, err)
	mockKV.AssertExpectations(t)
}

func TestUpdateEntry_AdjustsBorrowedMoney(t *testing.T) {
	mockKV := &MockKV{}
	svc := newTestService(mockKV, &MockBlobStore{})

	borrowed := decimal.RequireFromString("1200.00")
	in := validInput()
	in.BorrowedMoney = &borrowed

	mockKV.On("Patch", mock.Anything, store.CollectionEntries, "A1", mock.MatchedBy(func(fields map[string]any) bool {
		b, ok := fields["borrowedMoney"].(decimal.Decimal)
		return ok && b.Equal(borrowed)
	})).Return(nil)

	err := svc.UpdateEntry(context.Background(), "A1", in)

	assert.NoError(t, err)
	mockKV.AssertExpectations(t)
}

func TestDeleteEntry_MissingKeyIsNotAnError(t *testing.T) {
	mockKV := &MockKV{}
	svc := newTestService(mockKV, &MockBlobStore{})

	mockKV.On("Delete", mock.Anything, store.CollectionEntries, "GHOST").Return(nil)

	assert.NoError(t, svc.DeleteEntry(context.Background(), "GHOST"))
	mockKV.AssertExpectations(t)
}

func TestRecordPayment_DerivedBalances(t *testing.T) {
	mockKV := &MockKV{}
	svc := newTestService(mockKV, &MockBlobStore{})

	current := domain.LoanEntry{
		ApplicationNumber: "A1",
		BorrowedMoney:     decimal.RequireFromString("1000.00"),
		ReceivedMoney:     decimal.Zero,
		PendingMoney:      decimal.RequireFromString("1000.00"),
		PaymentHistory:    []domain.Payment{},
	}

	mockKV.On("Patch", mock.Anything, store.CollectionEntries, "A1", mock.MatchedBy(func(fields map[string]any) bool {
		received := fields["receivedMoney"].(decimal.Decimal)
		pending := fields["pendingMoney"].(decimal.Decimal)
		history := fields["paymentHistory"].([]domain.Payment)
		return received.Equal(decimal.NewFromInt(300)) &&
			pending.Equal(decimal.NewFromInt(700)) &&
			len(history) == 1 &&
			history[0].Month == "March 2024"
	})).Return(nil).Once()

	updated, err := svc.RecordPayment(context.Background(), "A1", current, decimal.NewFromInt(300))

	require.NoError(t, err)
	assert.True(t, updated.ReceivedMoney.Equal(decimal.NewFromInt(300)))
	assert.True(t, updated.PendingMoney.Equal(decimal.NewFromInt(700)))
	require.Len(t, updated.PaymentHistory, 1)
	assert.Equal(t, "March 2024", updated.PaymentHistory[0].Month)

	// Second payment settles the balance exactly.
	mockKV.On("Patch", mock.Anything, store.CollectionEntries, "A1", mock.MatchedBy(func(fields map[string]any) bool {
		received := fields["receivedMoney"].(decimal.Decimal)
		pending := fields["pendingMoney"].(decimal.Decimal)
		history := fields["paymentHistory"].([]domain.Payment)
		return received.Equal(decimal.NewFromInt(1000)) && pending.IsZero() && len(history) == 2
	})).Return(nil).Once()

	settled, err := svc.RecordPayment(context.Background(), "A1", *updated, decimal.NewFromInt(700))

	require.NoError(t, err)
	assert.True(t, settled.PendingMoney.IsZero())
	mockKV.AssertExpectations(t)
}

func TestRecordPayment_AppendOnlyOrder(t *testing.T) {
	mockKV := &MockKV{}
	svc := newTestService(mockKV, &MockBlobStore{})
	mockKV.On("Patch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	current := domain.LoanEntry{
		ApplicationNumber: "A1",
		BorrowedMoney:     decimal.NewFromInt(500),
	}

	amounts := []int64{100, 50, 25}
	for _, a := range amounts {
		updated, err := svc.RecordPayment(context.Background(), "A1", current, decimal.NewFromInt(a))
		require.NoError(t, err)
		current = *updated
	}

	require.Len(t, current.PaymentHistory, len(amounts))
	for i, a := range amounts {
		assert.True(t, current.PaymentHistory[i].AmountPaid.Equal(decimal.NewFromInt(a)),
			"payment %d out of order", i)
	}
	assert.True(t, current.ReceivedMoney.Equal(decimal.NewFromInt(175)))
	assert.True(t, current.PendingMoney.Equal(decimal.NewFromInt(325)))
}

func TestRecordPayment_NegativeAndOverpaymentAccepted(t *testing.T) {
	mockKV := &MockKV{}
	svc := newTestService(mockKV, &MockBlobStore{})
	mockKV.On("Patch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	current := domain.LoanEntry{
		ApplicationNumber: "A1",
		BorrowedMoney:     decimal.NewFromInt(100),
	}

	// Overpayment drives pendingMoney negative; it is surfaced, not clamped.
	over, err := svc.RecordPayment(context.Background(), "A1", current, decimal.NewFromInt(150))
	require.NoError(t, err)
	assert.True(t, over.PendingMoney.Equal(decimal.NewFromInt(-50)))

	// A negative amount acts as a refund correction.
	corrected, err := svc.RecordPayment(context.Background(), "A1", *over, decimal.NewFromInt(-50))
	require.NoError(t, err)
	assert.True(t, corrected.ReceivedMoney.Equal(decimal.NewFromInt(100)))
	assert.True(t, corrected.PendingMoney.IsZero())
	require.Len(t, corrected.PaymentHistory, 2)
}

func TestRecordPayment_UsesEditedBorrowedMoney(t *testing.T) {
	mockKV := &MockKV{}
	svc := newTestService(mockKV, &MockBlobStore{})
	mockKV.On("Patch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	// Principal was edited up from the original amount; the recomputation
	// must trust the caller's value instead of re-deriving from amount.
	current := domain.LoanEntry{
		ApplicationNumber: "A1",
		Amount:            decimal.NewFromInt(1000),
		BorrowedMoney:     decimal.NewFromInt(1500),
	}

	updated, err := svc.RecordPayment(context.Background(), "A1", current, decimal.NewFromInt(500))

	require.NoError(t, err)
	assert.True(t, updated.PendingMoney.Equal(decimal.NewFromInt(1000)))
}

func TestEditPaymentAmount_NilAmountIsNoOp(t *testing.T) {
	mockKV := &MockKV{}
	svc := newTestService(mockKV, &MockBlobStore{})

	history := []domain.Payment{{Month: "March 2024", AmountPaid: decimal.NewFromInt(100)}}

	updated, err := svc.EditPaymentAmount(context.Background(), "A1", history, 0, nil)

	assert.NoError(t, err)
	assert.Nil(t, updated)
	mockKV.AssertNotCalled(t, "Patch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEditPaymentAmount_OutOfRangeIndex(t *testing.T) {
	mockKV := &MockKV{}
	svc := newTestService(mockKV, &MockBlobStore{})

	amount := decimal.NewFromInt(100)
	history := []domain.Payment{{Month: "March 2024", AmountPaid: decimal.NewFromInt(100)}}

	_, err := svc.EditPaymentAmount(context.Background(), "A1", history, 5, &amount)

	var verr *apperrors.ValidationError
	assert.ErrorAs(t, err, &verr)
	mockKV.AssertNotCalled(t, "Patch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEditPaymentAmount_RecomputesByPosition(t *testing.T) {
	mockKV := &MockKV{}
	svc := newTestService(mockKV, &MockBlobStore{})

	entry := domain.LoanEntry{
		ApplicationNumber: "A1",
		PhoneNumber:       "5551234567",
		EndDate:           "2024-07-15",
		BorrowedMoney:     decimal.NewFromInt(1000),
		ReceivedMoney:     decimal.NewFromInt(400),
		PendingMoney:      decimal.NewFromInt(600),
		PaymentHistory: []domain.Payment{
			{Month: "January 2024", AmountPaid: decimal.NewFromInt(300)},
			{Month: "February 2024", AmountPaid: decimal.NewFromInt(100)},
		},
	}
	seedCache(t, svc, entry)

	mockKV.On("Patch", mock.Anything, store.CollectionEntries, "A1", mock.MatchedBy(func(fields map[string]any) bool {
		received := fields["receivedMoney"].(decimal.Decimal)
		pending := fields["pendingMoney"].(decimal.Decimal)
		history := fields["paymentHistory"].([]domain.Payment)
		return received.Equal(decimal.NewFromInt(550)) &&
			pending.Equal(decimal.NewFromInt(450)) &&
			len(history) == 2 &&
			history[1].AmountPaid.Equal(decimal.NewFromInt(250))
	})).Return(nil)

	amount := decimal.NewFromInt(250)
	updated, err := svc.EditPaymentAmount(context.Background(), "A1", entry.PaymentHistory, 1, &amount)

	require.NoError(t, err)
	assert.True(t, updated.ReceivedMoney.Equal(decimal.NewFromInt(550)))
	// The first payment is untouched; only position 1 was replaced.
	assert.True(t, updated.PaymentHistory[0].AmountPaid.Equal(decimal.NewFromInt(300)))
	mockKV.AssertExpectations(t)
}

func TestSearch_UsesCacheInReverseInsertionOrder(t *testing.T) {
	svc := newTestService(&MockKV{}, &MockBlobStore{})

	seedCache(t, svc,
		domain.LoanEntry{ApplicationNumber: "A1", PhoneNumber: "5551234567"},
		domain.LoanEntry{ApplicationNumber: "A2", PhoneNumber: "1234567890"},
		domain.LoanEntry{ApplicationNumber: "A3", PhoneNumber: "4445556667"},
	)

	results := svc.Search("555")

	require.Len(t, results, 2)
	assert.Equal(t, "A3", results[0].ApplicationNumber)
	assert.Equal(t, "A1", results[1].ApplicationNumber)
}

func TestDueEntries_StrictCalendarComparison(t *testing.T) {
	svc := newTestService(&MockKV{}, &MockBlobStore{})

	seedCache(t, svc,
		domain.LoanEntry{ApplicationNumber: "PAST", EndDate: "2024-03-09"},
		domain.LoanEntry{ApplicationNumber: "TODAY", EndDate: "2024-03-10"},
		domain.LoanEntry{ApplicationNumber: "FUTURE", EndDate: "2024-03-11"},
	)

	due := svc.DueEntries()

	require.Len(t, due, 1)
	assert.Equal(t, "PAST", due[0].ApplicationNumber)
}

func TestPostImage_UploadsThenPushes(t *testing.T) {
	mockKV := &MockKV{}
	mockBlobs := &MockBlobStore{}
	svc := newTestService(mockKV, mockBlobs)

	data := []byte{0xff, 0xd8, 0xff}
	url := "http://localhost:8080/files/11111111-1111-1111-1111-111111111111"

	mockBlobs.On("Upload", mock.Anything, mock.MatchedBy(func(name string) bool {
		return name == "images/gold.jpg-1710081000000"
	}), "image/jpeg", data).Return(url, nil)

	mockKV.On("Push", mock.Anything, store.CollectionPosts, mock.MatchedBy(func(post domain.ImagePost) bool {
		return post.ImageURL == url && post.Description == "pledged necklace" && post.CreatedAt.Equal(fixedNow)
	})).Return("k1", nil)

	post, err := svc.PostImage(context.Background(), "gold.jpg", "image/jpeg", data, "pledged necklace")

	require.NoError(t, err)
	assert.Equal(t, "k1", post.Key)
	assert.Equal(t, url, post.ImageURL)
	mockBlobs.AssertExpectations(t)
	mockKV.AssertExpectations(t)
}

func TestPosts_DecodesSnapshot(t *testing.T) {
	mockKV := &MockKV{}
	svc := newTestService(mockKV, &MockBlobStore{})

	raw, err := json.Marshal(domain.ImagePost{ImageURL: "u", Description: "d", CreatedAt: fixedNow})
	require.NoError(t, err)

	mockKV.On("Snapshot", mock.Anything, store.CollectionPosts).Return(&store.Snapshot{
		Keys:    []string{"k1"},
		Records: map[string]json.RawMessage{"k1": raw},
	}, nil)

	posts, err := svc.Posts(context.Background())

	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "k1", posts[0].Key)
	assert.Equal(t, "u", posts[0].ImageURL)
}
