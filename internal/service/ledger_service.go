package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/spsc/goldledger/internal/domain"
	"github.com/spsc/goldledger/internal/store"
	apperrors "github.com/spsc/goldledger/pkg/errors"
	"github.com/spsc/goldledger/pkg/utils"
)

// LedgerService owns the loan ledger's validation rules, derived-state
// computation, and orchestration of reads and writes through the store
// adapter. Each operation issues at most one read and one write; there is no
// cross-key transaction and no retry, so a failed write is reported once and
// the operation is retryable by re-invocation.
type LedgerService struct {
	kv       store.KV
	blobs    store.BlobStore
	cache    *EntryCache
	validate *validator.Validate
	now      func() time.Time
}

func NewLedgerService(kv store.KV, blobs store.BlobStore, cache *EntryCache) *LedgerService {
	return &LedgerService{
		kv:       kv,
		blobs:    blobs,
		cache:    cache,
		validate: domain.NewValidator(),
		now:      time.Now,
	}
}

// Watch subscribes the entry cache to the entries collection. Every change
// notification replaces the cached view wholesale.
func (s *LedgerService) Watch(ctx context.Context) (store.UnsubscribeFunc, error) {
	return s.kv.Subscribe(ctx, store.CollectionEntries, s.cache.ReplaceAll)
}

// Validate applies the per-field rules independently and returns every
// violated field, empty meaning valid.
func (s *LedgerService) Validate(in domain.EntryInput) []apperrors.FieldError {
	return domain.ValidateEntryInput(s.validate, in)
}

// CreateEntry validates the input, rejects duplicate application numbers
// before any write, and stores a fresh entry with borrowedMoney initialized
// from amount, no payments, and pendingMoney equal to the amount.
func (s *LedgerService) CreateEntry(ctx context.Context, in domain.EntryInput) (*domain.LoanEntry, error) {
	if fields := s.Validate(in); len(fields) > 0 {
		return nil, apperrors.NewValidationError(fields)
	}

	exists, err := s.kv.Exists(ctx, store.CollectionEntries, in.ApplicationNumber)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.WrapDuplicateKey(in.ApplicationNumber)
	}

	entry := domain.NewEntry(in)
	if err := s.kv.CreateOrReplace(ctx, store.CollectionEntries, in.ApplicationNumber, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// UpdateEntry patches the form fields of an existing entry. The application
// number is immutable: input carrying a different key is rejected. Payment
// state (paymentHistory, receivedMoney, pendingMoney) is never touched here.
func (s *LedgerService) UpdateEntry(ctx context.Context, applicationNumber string, in domain.EntryInput) error {
	if in.ApplicationNumber != applicationNumber {
		return apperrors.NewValidationError([]apperrors.FieldError{{
			Field:   "applicationNumber",
			Message: "application number cannot be changed",
		}})
	}
	if fields := s.Validate(in); len(fields) > 0 {
		return apperrors.NewValidationError(fields)
	}

	patch := map[string]any{
		"username":       in.Username,
		"address":        in.Address,
		"goldGramWeight": in.GoldGramWeight,
		"amount":         in.Amount,
		"startDate":      in.StartDate,
		"endDate":        in.EndDate,
		"phoneNumber":    in.PhoneNumber,
		"notes":          in.Notes,
	}
	if in.BorrowedMoney != nil {
		patch["borrowedMoney"] = *in.BorrowedMoney
	}

	return s.kv.Patch(ctx, store.CollectionEntries, applicationNumber, patch)
}

// DeleteEntry removes an entry irreversibly. Deleting a missing key is not
// an error.
func (s *LedgerService) DeleteEntry(ctx context.Context, applicationNumber string) error {
	return s.kv.Delete(ctx, store.CollectionEntries, applicationNumber)
}

// Entry returns the cached entry for an application number.
func (s *LedgerService) Entry(applicationNumber string) (domain.LoanEntry, error) {
	entry, ok := s.cache.Get(applicationNumber)
	if !ok {
		return domain.LoanEntry{}, apperrors.WrapEntryNotFound(applicationNumber)
	}
	return entry, nil
}

// Entries returns the cached entries in insertion order.
func (s *LedgerService) Entries() []domain.LoanEntry {
	return s.cache.All()
}

// Search returns the entries whose phone number contains term as a literal
// substring, most recently created first.
func (s *LedgerService) Search(term string) []domain.LoanEntry {
	return domain.SearchByPhone(s.cache.All(), term)
}

// DueEntries returns the entries whose end date has already passed.
func (s *LedgerService) DueEntries() []domain.LoanEntry {
	return domain.DueBefore(s.cache.All(), s.now())
}

// RecordPayment appends a payment labelled with the current month to the
// entry's history and recomputes the derived balances. BorrowedMoney is taken
// from the caller's current entry, not re-derived from the original amount,
// so a just-edited principal is respected. Zero and negative amounts are
// accepted as-is to allow refund corrections; pendingMoney may go negative on
// overpayment. The four fields are written in a single merge patch.
func (s *LedgerService) RecordPayment(ctx context.Context, applicationNumber string, current domain.LoanEntry, amount decimal.Decimal) (*domain.LoanEntry, error) {
	history := make([]domain.Payment, 0, len(current.PaymentHistory)+1)
	history = append(history, current.PaymentHistory...)
	history = append(history, domain.Payment{
		Month:      utils.MonthLabel(s.now()),
		AmountPaid: amount,
	})

	received := domain.SumPayments(history)
	pending := current.BorrowedMoney.Sub(received)

	err := s.kv.Patch(ctx, store.CollectionEntries, applicationNumber, map[string]any{
		"borrowedMoney":  current.BorrowedMoney,
		"receivedMoney":  received,
		"pendingMoney":   pending,
		"paymentHistory": history,
	})
	if err != nil {
		return nil, err
	}

	updated := current
	updated.ReceivedMoney = received
	updated.PendingMoney = pending
	updated.PaymentHistory = history
	return &updated, nil
}

// EditPaymentAmount replaces one payment's amount by position in the history
// and recomputes the derived balances over the mutated history. A nil
// replacement amount is a silent no-op.
func (s *LedgerService) EditPaymentAmount(ctx context.Context, applicationNumber string, history []domain.Payment, index int, newAmount *decimal.Decimal) (*domain.LoanEntry, error) {
	if newAmount == nil {
		return nil, nil
	}
	if index < 0 || index >= len(history) {
		return nil, apperrors.NewValidationError([]apperrors.FieldError{{
			Field:   "index",
			Message: fmt.Sprintf("payment index %d is out of range", index),
		}})
	}

	current, err := s.Entry(applicationNumber)
	if err != nil {
		return nil, err
	}

	mutated := make([]domain.Payment, len(history))
	copy(mutated, history)
	mutated[index].AmountPaid = *newAmount

	received := domain.SumPayments(mutated)
	pending := current.BorrowedMoney.Sub(received)

	err = s.kv.Patch(ctx, store.CollectionEntries, applicationNumber, map[string]any{
		"receivedMoney":  received,
		"pendingMoney":   pending,
		"paymentHistory": mutated,
	})
	if err != nil {
		return nil, err
	}

	current.ReceivedMoney = received
	current.PendingMoney = pending
	current.PaymentHistory = mutated
	return &current, nil
}

// PostImage uploads the image bytes and appends an auto-keyed post with the
// resulting URL and description.
func (s *LedgerService) PostImage(ctx context.Context, filename, contentType string, data []byte, description string) (*domain.PostedImage, error) {
	objectName := fmt.Sprintf("images/%s-%d", filename, s.now().UnixMilli())

	url, err := s.blobs.Upload(ctx, objectName, contentType, data)
	if err != nil {
		return nil, err
	}

	post := domain.ImagePost{
		ImageURL:    url,
		Description: description,
		CreatedAt:   s.now(),
	}
	key, err := s.kv.Push(ctx, store.CollectionPosts, post)
	if err != nil {
		return nil, err
	}

	return &domain.PostedImage{Key: key, ImagePost: post}, nil
}

// Posts reads the full posts collection. Backend iteration order is
// arbitrary; the stored timestamps let callers order the result.
func (s *LedgerService) Posts(ctx context.Context) ([]domain.PostedImage, error) {
	snap, err := s.kv.Snapshot(ctx, store.CollectionPosts)
	if err != nil {
		return nil, err
	}

	posts := make([]domain.PostedImage, 0, len(snap.Keys))
	for _, key := range snap.Keys {
		var post domain.ImagePost
		if err := json.Unmarshal(snap.Records[key], &post); err != nil {
			log.Printf("service: skipping undecodable post %s: %v", key, err)
			continue
		}
		posts = append(posts, domain.PostedImage{Key: key, ImagePost: post})
	}
	return posts, nil
}

// DeletePost removes one post by its auto-assigned key.
func (s *LedgerService) DeletePost(ctx context.Context, key string) error {
	return s.kv.Delete(ctx, store.CollectionPosts, key)
}
