package station

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/fuel-station-simulator/internal/model"
	"github.com/fairyhunter13/fuel-station-simulator/internal/pricing"
)

func newStation(t *testing.T, g model.FuelGrade, stock, price float64) *Station {
	t.Helper()
	s := New(nil)
	require.NoError(t, s.AddPump(g, stock))
	require.NoError(t, s.SetPrice(g, price))
	return s
}

func TestBuyTwoConcurrentRequestsOnlyOneFits(t *testing.T) {
	s := newStation(t, model.Diesel, 100, 1.50)

	var wg sync.WaitGroup
	paid := make([]float64, 2)
	errs := make([]error, 2)
	start := make(chan struct{})
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			paid[i], errs[i] = s.Buy(model.Diesel, 60, 2.00)
		}(i)
	}
	close(start)
	wg.Wait()

	var okIdx, failIdx = -1, -1
	for i, err := range errs {
		if err == nil {
			okIdx = i
		} else {
			failIdx = i
		}
	}
	require.NotEqual(t, -1, okIdx, "one purchase must succeed")
	require.NotEqual(t, -1, failIdx, "one purchase must fail")

	assert.Equal(t, 90.0, paid[okIdx])
	var nes *NotEnoughStockError
	require.ErrorAs(t, errs[failIdx], &nes)
	assert.Equal(t, 40.0, nes.Available)
	assert.Equal(t, 60.0, nes.Requested)
	assert.ErrorIs(t, errs[failIdx], ErrNotEnoughStock)

	rem, err := s.Remaining(model.Diesel)
	require.NoError(t, err)
	assert.Equal(t, 40.0, rem)
	assert.Equal(t, 90.0, s.Revenue())
	assert.Equal(t, uint64(1), s.SalesCount())
	assert.Equal(t, uint64(1), s.CancellationsNoStock())
	assert.Zero(t, s.CancellationsPrice())
}

func TestBuyPriceTooHighLeavesStockAndRevenue(t *testing.T) {
	s := newStation(t, model.Regular, 100, 2.00)

	_, err := s.Buy(model.Regular, 10, 1.50)
	var pth *PriceTooHighError
	require.ErrorAs(t, err, &pth)
	assert.Equal(t, 2.00, pth.CurrentPrice)
	assert.Equal(t, 1.50, pth.MaxPrice)
	assert.ErrorIs(t, err, ErrPriceTooHigh)
	assert.True(t, IsRejection(err))

	rem, _ := s.Remaining(model.Regular)
	assert.Equal(t, 100.0, rem)
	assert.Zero(t, s.Revenue())
	assert.Zero(t, s.SalesCount())
	assert.Equal(t, uint64(1), s.CancellationsPrice())
	assert.Zero(t, s.CancellationsNoStock())
}

func TestBuyPriceEqualToCeilingCommits(t *testing.T) {
	s := newStation(t, model.Super, 80.3, 1.7)
	paid, err := s.Buy(model.Super, 10, 1.7)
	require.NoError(t, err)
	assert.Equal(t, 17.0, paid)
}

func TestPreconditionErrorsAreNotCounted(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.AddPump(model.Diesel, 100))

	_, err := s.Buy(model.Diesel, 10, 2)
	assert.ErrorIs(t, err, ErrPriceNotSet)
	rem, _ := s.Remaining(model.Diesel)
	assert.Equal(t, 100.0, rem, "missing price must not consume stock")

	_, err = s.Buy(model.Super, 10, 2)
	assert.ErrorIs(t, err, ErrUnknownGrade)

	_, err = s.Buy(model.Diesel, 0, 2)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = s.Buy(model.Diesel, 5, -1)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	assert.False(t, IsRejection(err))
	assert.Zero(t, s.Ledger().Snapshot().Resolved())

	assert.ErrorIs(t, s.AddPump(model.Diesel, 5), ErrPumpExists)
	assert.ErrorIs(t, s.AddPump(model.Regular, -5), ErrInvalidStock)
	assert.ErrorIs(t, s.AddPump(model.FuelGrade(42), 5), ErrUnknownGrade)
	assert.ErrorIs(t, s.SetPrice(model.Diesel, 0), ErrInvalidPrice)
	_, err = s.Price(model.Super)
	assert.ErrorIs(t, err, ErrPriceNotSet)
	_, err = s.Remaining(model.Super)
	assert.ErrorIs(t, err, ErrUnknownGrade)
}

func TestNonFiniteValuesAreRejectedWithoutTouchingStock(t *testing.T) {
	inf := math.Inf(1)
	s := newStation(t, model.Diesel, 100, 1.5)

	assert.ErrorIs(t, s.AddPump(model.Regular, inf), ErrInvalidStock)
	assert.ErrorIs(t, s.AddPump(model.Regular, math.NaN()), ErrInvalidStock)
	assert.ErrorIs(t, s.SetPrice(model.Diesel, inf), ErrInvalidPrice)
	assert.ErrorIs(t, s.SetPrice(model.Diesel, math.NaN()), ErrInvalidPrice)
	_, err := s.ApplyPriceUpdate(model.PriceUpdate{Grade: model.Diesel, Price: inf, Sequence: 1})
	assert.ErrorIs(t, err, ErrInvalidPrice)

	for _, req := range [][2]float64{{inf, 2}, {math.NaN(), 2}, {10, inf}, {10, math.NaN()}} {
		_, err := s.Buy(model.Diesel, req[0], req[1])
		assert.ErrorIs(t, err, ErrInvalidRequest, "amount=%v max=%v", req[0], req[1])
	}

	rem, err := s.Remaining(model.Diesel)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rem)
	p, err := s.Price(model.Diesel)
	require.NoError(t, err)
	assert.Equal(t, 1.5, p)
	assert.Zero(t, s.Ledger().Snapshot().Resolved())
}

func TestBoardWithNonFinitePriceUndoesReservation(t *testing.T) {
	board := pricing.New()
	s := New(board)
	require.NoError(t, s.AddPump(model.Diesel, 100))
	board.Set(model.Diesel, math.Inf(1))

	assert.NotPanics(t, func() {
		_, err := s.Buy(model.Diesel, 10, 2)
		assert.ErrorIs(t, err, ErrInvalidPrice)
	})
	rem, _ := s.Remaining(model.Diesel)
	assert.Equal(t, 100.0, rem)
	assert.Zero(t, s.SalesCount())
	assert.Zero(t, s.Ledger().Snapshot().Resolved())
}

func TestApplyPriceUpdate(t *testing.T) {
	s := newStation(t, model.Diesel, 100, 1.2)
	ok, err := s.ApplyPriceUpdate(model.PriceUpdate{Grade: model.Diesel, Price: 1.3, Sequence: 2})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.ApplyPriceUpdate(model.PriceUpdate{Grade: model.Diesel, Price: 1.1, Sequence: 1})
	require.NoError(t, err)
	assert.False(t, ok)
	p, _ := s.Price(model.Diesel)
	assert.Equal(t, 1.3, p)
	assert.Equal(t, map[model.FuelGrade]float64{model.Diesel: 1.3}, s.Prices())

	_, err = s.ApplyPriceUpdate(model.PriceUpdate{Grade: model.Diesel, Price: -1, Sequence: 3})
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestConcurrentPurchasesKeepLedgerConsistent(t *testing.T) {
	s := New(nil)
	stocks := map[model.FuelGrade]float64{model.Diesel: 500, model.Regular: 300, model.Super: 100}
	for _, g := range model.Grades() {
		require.NoError(t, s.AddPump(g, stocks[g]))
		require.NoError(t, s.SetPrice(g, 1.5))
	}

	type result struct {
		r   model.Receipt
		err error
	}
	const perGrade = 120
	results := make(chan result, perGrade*3)
	var wg sync.WaitGroup
	for _, g := range model.Grades() {
		for i := 0; i < perGrade; i++ {
			wg.Add(1)
			go func(g model.FuelGrade, i int) {
				defer wg.Done()
				amount := float64(1 + i%9)
				ceiling := 1.0 + float64(i%2)
				r, err := s.Settle(model.PurchaseRequest{Grade: g, Amount: amount, MaxUnitPrice: ceiling})
				results <- result{r, err}
			}(g, i)
		}
	}
	wg.Wait()
	close(results)

	var commits, noStock, tooHigh uint64
	committed := map[model.FuelGrade]float64{}
	revenue := decimal.Zero
	for res := range results {
		switch {
		case res.err == nil:
			commits++
			committed[res.r.Grade] += res.r.Amount
			revenue = revenue.Add(decimal.NewFromFloat(res.r.UnitPrice).Mul(decimal.NewFromFloat(res.r.Amount)))
		case errors.Is(res.err, ErrNotEnoughStock):
			noStock++
		case errors.Is(res.err, ErrPriceTooHigh):
			tooHigh++
		default:
			t.Fatalf("unexpected error: %v", res.err)
		}
	}

	snap := s.Ledger().Snapshot()
	assert.Equal(t, commits, snap.Sales)
	assert.Equal(t, noStock, snap.CancelledNoStock)
	assert.Equal(t, tooHigh, snap.CancelledPrice)
	assert.Equal(t, uint64(perGrade*3), snap.Resolved())
	assert.True(t, revenue.Equal(snap.Revenue), "revenue %s != %s", snap.Revenue, revenue)

	for _, g := range model.Grades() {
		rem, _ := s.Remaining(g)
		assert.GreaterOrEqual(t, rem, 0.0)
		assert.Equal(t, stocks[g]-committed[g], rem, "grade %s", g)
	}
}

func TestRevenueUsesPriceObservedAtCommit(t *testing.T) {
	s := newStation(t, model.Super, 1e6, 1.70)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		prices := []float64{1.65, 1.70, 1.75, 1.80}
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			_ = s.SetPrice(model.Super, prices[i%len(prices)])
		}
	}()

	receipts := make(chan model.Receipt, 50)
	var buyers sync.WaitGroup
	for i := 0; i < 50; i++ {
		buyers.Add(1)
		go func(i int) {
			defer buyers.Done()
			r, err := s.Settle(model.PurchaseRequest{Grade: model.Super, Amount: float64(10 + i), MaxUnitPrice: 2})
			if err != nil {
				t.Errorf("settle: %v", err)
				return
			}
			receipts <- r
		}(i)
	}
	buyers.Wait()
	close(stop)
	wg.Wait()
	close(receipts)

	want := decimal.Zero
	for r := range receipts {
		want = want.Add(decimal.NewFromFloat(r.UnitPrice).Mul(decimal.NewFromFloat(r.Amount)))
	}
	got := s.Ledger().RevenueDecimal()
	assert.True(t, want.Equal(got), "revenue %s != %s", got, want)
	assert.Equal(t, uint64(50), s.SalesCount())
}

func TestPumpAdmissionIsFIFO(t *testing.T) {
	s := newStation(t, model.Diesel, 55, 1)
	l, err := s.lane(model.Diesel)
	require.NoError(t, err)

	l.gate.Enter()
	const n = 10
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Buy(model.Diesel, 10, 2)
		}(i)
		require.Eventually(t, func() bool { return l.gate.Waiting() == i+1 }, time.Second, time.Millisecond)
	}
	l.gate.Leave()
	wg.Wait()

	for i, err := range errs {
		if i < 5 {
			assert.NoError(t, err, "customer %d arrived early enough to be served", i)
		} else {
			assert.ErrorIs(t, err, ErrNotEnoughStock, "customer %d", i)
		}
	}
}

func TestPumpsDoNotBlockEachOther(t *testing.T) {
	s := New(nil)
	for _, g := range model.Grades() {
		require.NoError(t, s.AddPump(g, 100))
		require.NoError(t, s.SetPrice(g, 1))
	}
	l, _ := s.lane(model.Diesel)
	l.gate.Enter()
	defer l.gate.Leave()

	done := make(chan error, 1)
	go func() {
		_, err := s.Buy(model.Regular, 10, 2)
		done <- err
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("purchase on REGULAR blocked by DIESEL gate")
	}
}

func TestPumpsOrder(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.AddPump(model.Super, 1))
	require.NoError(t, s.AddPump(model.Diesel, 2))
	pumps := s.Pumps()
	require.Len(t, pumps, 2)
	assert.Equal(t, model.Super, pumps[0].Grade())
	assert.Equal(t, 2.0, pumps[1].Initial())
}
