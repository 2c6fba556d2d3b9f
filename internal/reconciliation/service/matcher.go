package service

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/paysettle/internal/payment/domain"
	"github.com/smallbiznis/paysettle/internal/reconciliation/domain"
)

// amountTolerance is the absolute difference below which amounts are equal.
var amountTolerance = decimal.RequireFromString("0.0001")

type indexKey struct {
	provider paymentdomain.Provider
	value    string
}

type intentIndex struct {
	byTxnID map[indexKey][]int
	byRef   map[indexKey][]int
}

type txnIndex struct {
	byTxnID map[indexKey]struct{}
	byRef   map[indexKey]struct{}
}

func indexIntents(intents []paymentdomain.PaymentIntent) intentIndex {
	idx := intentIndex{byTxnID: map[indexKey][]int{}, byRef: map[indexKey][]int{}}
	for i, intent := range intents {
		if v := intent.TransactionID(); v != "" {
			k := indexKey{intent.Provider, v}
			idx.byTxnID[k] = append(idx.byTxnID[k], i)
		}
		if v := intent.Reference(); v != "" {
			k := indexKey{intent.Provider, v}
			idx.byRef[k] = append(idx.byRef[k], i)
		}
	}
	return idx
}

func indexTransactions(txns []paymentdomain.ProviderTransaction) txnIndex {
	idx := txnIndex{byTxnID: map[indexKey]struct{}{}, byRef: map[indexKey]struct{}{}}
	for _, txn := range txns {
		if v := strings.TrimSpace(txn.ProviderTransactionID); v != "" {
			idx.byTxnID[indexKey{txn.Provider, v}] = struct{}{}
		}
		if v := txn.ReferenceValue(); v != "" {
			idx.byRef[indexKey{txn.Provider, v}] = struct{}{}
		}
	}
	return idx
}

// match classifies every transaction and every intent of the window. The
// returned items carry no id, run id or timestamp.
func match(intents []paymentdomain.PaymentIntent, txns []paymentdomain.ProviderTransaction) []domain.Item {
	intentsIdx := indexIntents(intents)
	txnsIdx := indexTransactions(txns)

	items := make([]domain.Item, 0, len(txns)+len(intents))
	for _, txn := range txns {
		items = append(items, classifyTransaction(txn, candidates(txn, intents, intentsIdx)))
	}

	for _, intent := range intents {
		if intent.Status != paymentdomain.IntentStatusSuccess {
			continue
		}
		if hasTransaction(intent, txnsIdx) {
			continue
		}
		items = append(items, intentItem(intent, domain.ItemStatusMissingProviderTransaction, domain.ReasonNoProviderTransactionForIntent,
			fmt.Sprintf("no provider transaction for intent %s", intent.ID)))
	}

	items = append(items, duplicateReferences(intents, intentsIdx)...)
	return items
}

// candidates returns intents matching txn by transaction id, then by reference, without repeats.
func candidates(txn paymentdomain.ProviderTransaction, intents []paymentdomain.PaymentIntent, idx intentIndex) []paymentdomain.PaymentIntent {
	seen := map[int]struct{}{}
	var out []paymentdomain.PaymentIntent
	add := func(positions []int) {
		for _, pos := range positions {
			if _, ok := seen[pos]; ok {
				continue
			}
			seen[pos] = struct{}{}
			out = append(out, intents[pos])
		}
	}

	if v := strings.TrimSpace(txn.ProviderTransactionID); v != "" {
		add(idx.byTxnID[indexKey{txn.Provider, v}])
	}
	if v := txn.ReferenceValue(); v != "" {
		add(idx.byRef[indexKey{txn.Provider, v}])
	}
	return out
}

func classifyTransaction(txn paymentdomain.ProviderTransaction, found []paymentdomain.PaymentIntent) domain.Item {
	switch len(found) {
	case 0:
		return txnItem(txn, nil, domain.ItemStatusMissingInternalIntent, domain.ReasonNoPaymentIntentForReference,
			fmt.Sprintf("no payment intent for reference %q / transaction %q", txn.ReferenceValue(), txn.ProviderTransactionID))
	case 1:
	default:
		return txnItem(txn, nil, domain.ItemStatusDuplicate, domain.ReasonDuplicateReference,
			"colliding payment intents: "+joinIDs(found))
	}

	intent := found[0]
	switch {
	case !strings.EqualFold(strings.TrimSpace(intent.Currency), strings.TrimSpace(txn.Currency)):
		return txnItem(txn, &intent, domain.ItemStatusMismatch, domain.ReasonCurrencyMismatch,
			fmt.Sprintf("intent currency %s, provider currency %s", intent.Currency, txn.Currency))
	case !amountsEqual(intent.Amount, txn.Amount):
		return txnItem(txn, &intent, domain.ItemStatusMismatch, domain.ReasonAmountMismatch,
			fmt.Sprintf("intent amount %s, provider amount %s", intent.Amount.StringFixed(4), txn.Amount.StringFixed(4)))
	case txn.Status == paymentdomain.TransactionStatusSuccess && intent.Status != paymentdomain.IntentStatusSuccess:
		return txnItem(txn, &intent, domain.ItemStatusNeedsReview, domain.ReasonStatusMismatch,
			fmt.Sprintf("provider status %s, intent status %s", txn.Status, intent.Status))
	case intent.Status == paymentdomain.IntentStatusSuccess && !intent.IsFinalized:
		return txnItem(txn, &intent, domain.ItemStatusFinalizerFailed, domain.ReasonFinalizationError,
			"intent settled but not finalized")
	}
	return txnItem(txn, &intent, domain.ItemStatusMatched, domain.ReasonNone, "")
}

func hasTransaction(intent paymentdomain.PaymentIntent, idx txnIndex) bool {
	if v := intent.TransactionID(); v != "" {
		if _, ok := idx.byTxnID[indexKey{intent.Provider, v}]; ok {
			return true
		}
	}
	if v := intent.Reference(); v != "" {
		if _, ok := idx.byRef[indexKey{intent.Provider, v}]; ok {
			return true
		}
	}
	return false
}

// duplicateReferences flags every intent whose (provider, reference) is shared
// with another intent, whether or not a provider transaction exists.
func duplicateReferences(intents []paymentdomain.PaymentIntent, idx intentIndex) []domain.Item {
	var items []domain.Item
	for i, intent := range intents {
		ref := intent.Reference()
		if ref == "" {
			continue
		}
		group := idx.byRef[indexKey{intent.Provider, ref}]
		if len(group) < 2 {
			continue
		}
		// Emit the group once, when visiting its first member.
		if group[0] != i {
			continue
		}

		colliding := make([]paymentdomain.PaymentIntent, 0, len(group))
		for _, pos := range group {
			colliding = append(colliding, intents[pos])
		}
		details := "colliding payment intents: " + joinIDs(colliding)
		for _, member := range colliding {
			items = append(items, intentItem(member, domain.ItemStatusDuplicate, domain.ReasonDuplicateReference, details))
		}
	}
	return items
}

func amountsEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(amountTolerance)
}

func txnItem(txn paymentdomain.ProviderTransaction, intent *paymentdomain.PaymentIntent, status domain.ItemStatus, reason domain.Reason, details string) domain.Item {
	txnID := txn.ProviderTransactionID
	item := domain.Item{
		Provider:              txn.Provider,
		Reference:             txn.ReferenceValue(),
		ProviderTransactionID: &txnID,
		Status:                status,
		Reason:                reason,
		Details:               details,
	}
	if intent != nil {
		id := intent.ID
		item.PaymentIntentID = &id
		item.InvoiceID = intent.InvoiceID
	}
	return item
}

func intentItem(intent paymentdomain.PaymentIntent, status domain.ItemStatus, reason domain.Reason, details string) domain.Item {
	id := intent.ID
	item := domain.Item{
		Provider:        intent.Provider,
		Reference:       intent.Reference(),
		PaymentIntentID: &id,
		InvoiceID:       intent.InvoiceID,
		Status:          status,
		Reason:          reason,
		Details:         details,
	}
	if v := intent.TransactionID(); v != "" {
		item.ProviderTransactionID = &v
	}
	return item
}

func joinIDs(intents []paymentdomain.PaymentIntent) string {
	ids := make([]string, 0, len(intents))
	for _, intent := range intents {
		ids = append(ids, intent.ID.String())
	}
	return strings.Join(ids, ",")
}

func countByStatus(items []domain.Item) map[domain.ItemStatus]int {
	counts := make(map[domain.ItemStatus]int, len(domain.ItemStatuses))
	for _, item := range items {
		counts[item.Status]++
	}
	return counts
}
