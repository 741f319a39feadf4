package registry

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/thistle/pkg/metrics"
	"github.com/Ramsey-B/thistle/pkg/models"
)

const (
	validSiret   = "80295478500028"
	alteredSiret = "80295478500029"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestCheckChecksum(t *testing.T) {
	tests := []struct {
		identifier string
		expected   bool
	}{
		{validSiret, true},
		{alteredSiret, false},
		{"12345678901237", true},
		{"12345678901234", false},
		{"00000000000000", true},
		{"802 954 785 00028", true},
		{"8029547850002", false},
		{"8029547850002a", false},
	}

	for _, tt := range tests {
		t.Run(tt.identifier, func(t *testing.T) {
			assert.Equal(t, tt.expected, CheckChecksum(tt.identifier))
			// deterministic
			assert.Equal(t, CheckChecksum(tt.identifier), CheckChecksum(tt.identifier))
		})
	}
}

func TestCheckFormat(t *testing.T) {
	assert.True(t, CheckFormat(validSiret))
	assert.True(t, CheckFormat(" 802 954 785 00028\t"))
	assert.False(t, CheckFormat(""))
	assert.False(t, CheckFormat("802954785000"))
	assert.False(t, CheckFormat("802954785000281"))
	assert.False(t, CheckFormat("80295478500O28"))
	assert.False(t, CheckFormat("802-954-785-00028"))
}

func TestValidator_Validate_WithoutLookup(t *testing.T) {
	v := NewValidator(testLogger(), DefaultConfig(), nil)
	ctx := context.Background()

	t.Run("valid checksum", func(t *testing.T) {
		res := v.Validate(ctx, validSiret)
		assert.True(t, res.IsValid)
		assert.Equal(t, validSiret, res.Identifier)
		assert.Equal(t, models.RegistryStatusChecksumVerified, res.Status)
		assert.Empty(t, res.Error)
		assert.Empty(t, res.ErrorKind)
	})

	t.Run("one altered digit", func(t *testing.T) {
		res := v.Validate(ctx, alteredSiret)
		assert.False(t, res.IsValid)
		assert.Equal(t, models.ValidationErrorInvalidChecksum, res.ErrorKind)
		assert.Equal(t, "invalid checksum: identifier checksum does not match", res.Error)
	})

	t.Run("whitespace is ignored", func(t *testing.T) {
		res := v.Validate(ctx, "802 954 785 00028")
		assert.True(t, res.IsValid)
		assert.Equal(t, validSiret, res.Identifier)
	})

	t.Run("invalid format", func(t *testing.T) {
		for _, id := range []string{"", "123", "ABCDEFGHIJKLMN", "802954785000280"} {
			res := v.Validate(ctx, id)
			assert.False(t, res.IsValid, id)
			assert.Equal(t, models.ValidationErrorInvalidFormat, res.ErrorKind, id)
			assert.Equal(t, "invalid format: identifier must be 14 digits", res.Error, id)
		}
	})
}

func TestValidator_Validate_WithLookup(t *testing.T) {
	lookup := NewStaticLookup(models.RegistryEntry{
		Identifier:  validSiret,
		CompanyName: "LE CYRANO",
		Address:     "15 PLACE PELISSIERE 24100 BERGERAC",
		Status:      models.RegistryStatusActive,
	}, models.RegistryEntry{
		Identifier:  "12345678901237",
		CompanyName: "NO STATUS",
	})
	v := NewValidator(testLogger(), DefaultConfig(), lookup)
	ctx := context.Background()

	t.Run("registered", func(t *testing.T) {
		res := v.Validate(ctx, validSiret)
		assert.True(t, res.IsValid)
		assert.Equal(t, "LE CYRANO", res.CompanyName)
		assert.Equal(t, "15 PLACE PELISSIERE 24100 BERGERAC", res.Address)
		assert.Equal(t, models.RegistryStatusActive, res.Status)
	})

	t.Run("missing status defaults to active", func(t *testing.T) {
		res := v.Validate(ctx, "12345678901237")
		assert.True(t, res.IsValid)
		assert.Equal(t, models.RegistryStatusActive, res.Status)
	})

	t.Run("not registered", func(t *testing.T) {
		res := v.Validate(ctx, "00000000000000")
		assert.False(t, res.IsValid)
		assert.Equal(t, models.ValidationErrorNotRegistered, res.ErrorKind)
		assert.True(t, strings.HasPrefix(res.Error, ErrNotRegistered.Error()), res.Error)
	})

	t.Run("checksum failure skips the lookup", func(t *testing.T) {
		var calls atomic.Int32
		counting := LookupFunc(func(ctx context.Context, id string) (models.RegistryEntry, error) {
			calls.Add(1)
			return models.RegistryEntry{}, nil
		})
		res := NewValidator(testLogger(), DefaultConfig(), counting).Validate(ctx, alteredSiret)
		assert.False(t, res.IsValid)
		assert.Equal(t, int32(0), calls.Load())
	})
}

func TestValidator_Validate_RegistryUnavailable(t *testing.T) {
	t.Run("lookup error", func(t *testing.T) {
		failing := LookupFunc(func(ctx context.Context, id string) (models.RegistryEntry, error) {
			return models.RegistryEntry{}, errors.New("connection refused")
		})
		res := NewValidator(testLogger(), DefaultConfig(), failing).Validate(context.Background(), validSiret)
		assert.False(t, res.IsValid)
		assert.Equal(t, models.ValidationErrorRegistryUnavailable, res.ErrorKind)
		assert.True(t, strings.HasPrefix(res.Error, ErrRegistryUnavailable.Error()), res.Error)
	})

	t.Run("lookup that ignores its context times out", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)

		hanging := LookupFunc(func(ctx context.Context, id string) (models.RegistryEntry, error) {
			<-release
			return models.RegistryEntry{}, nil
		})
		v := NewValidator(testLogger(), Config{LookupTimeout: 20 * time.Millisecond}, hanging)

		start := time.Now()
		res := v.Validate(context.Background(), validSiret)
		assert.Less(t, time.Since(start), 2*time.Second)
		assert.False(t, res.IsValid)
		assert.Equal(t, models.ValidationErrorRegistryUnavailable, res.ErrorKind)
	})

	t.Run("caller cancellation", func(t *testing.T) {
		waiting := LookupFunc(func(ctx context.Context, id string) (models.RegistryEntry, error) {
			<-ctx.Done()
			return models.RegistryEntry{}, ctx.Err()
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res := NewValidator(testLogger(), DefaultConfig(), waiting).Validate(ctx, validSiret)
		assert.False(t, res.IsValid)
		assert.Equal(t, models.ValidationErrorRegistryUnavailable, res.ErrorKind)
	})

	t.Run("panicking lookup", func(t *testing.T) {
		panicking := LookupFunc(func(ctx context.Context, id string) (models.RegistryEntry, error) {
			panic("boom")
		})
		res := NewValidator(testLogger(), DefaultConfig(), panicking).Validate(context.Background(), validSiret)
		assert.False(t, res.IsValid)
		assert.Equal(t, models.ValidationErrorRegistryUnavailable, res.ErrorKind)
	})
}

func lookupSamples(t *testing.T) uint64 {
	m := &dto.Metric{}
	require.NoError(t, metrics.RegistryLookupDuration.Write(m))
	return m.GetHistogram().GetSampleCount()
}

func TestValidator_Validate_RecordsOnlyRegistryCalls(t *testing.T) {
	lookup := NewStaticLookup(models.RegistryEntry{Identifier: validSiret, CompanyName: "LE CYRANO"})
	v := NewValidator(testLogger(), DefaultConfig(), lookup)
	ctx := context.Background()

	before := lookupSamples(t)
	v.Validate(ctx, "123")
	v.Validate(ctx, alteredSiret)
	assert.Equal(t, before, lookupSamples(t))

	v.Validate(ctx, validSiret)
	assert.Equal(t, before+1, lookupSamples(t))

	NewValidator(testLogger(), DefaultConfig(), nil).Validate(ctx, validSiret)
	assert.Equal(t, before+1, lookupSamples(t))
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, models.ValidationErrorInvalidFormat, ErrorKind(ErrInvalidFormat))
	assert.Equal(t, models.ValidationErrorInvalidChecksum, ErrorKind(ErrInvalidChecksum))
	assert.Equal(t, models.ValidationErrorNotRegistered, ErrorKind(errors.Join(errors.New("wrapped"), ErrNotRegistered)))
	assert.Equal(t, models.ValidationErrorRegistryUnavailable, ErrorKind(context.DeadlineExceeded))
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]models.RegistryEntry
	getErr  error
}

func (m *memoryCache) Get(_ context.Context, id string) (models.RegistryEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return models.RegistryEntry{}, false, m.getErr
	}
	e, ok := m.entries[id]
	return e, ok, nil
}

func (m *memoryCache) Set(_ context.Context, id string, e models.RegistryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = e
	return nil
}

func TestCachedLookup(t *testing.T) {
	entry := models.RegistryEntry{Identifier: validSiret, CompanyName: "LE CYRANO"}

	t.Run("second call is served from the cache", func(t *testing.T) {
		var calls atomic.Int32
		upstream := LookupFunc(func(ctx context.Context, id string) (models.RegistryEntry, error) {
			calls.Add(1)
			return entry, nil
		})
		cache := &memoryCache{entries: map[string]models.RegistryEntry{}}
		lookup := NewCachedLookup(testLogger(), upstream, cache, time.Second)

		for i := 0; i < 3; i++ {
			got, err := lookup.Lookup(context.Background(), validSiret)
			require.NoError(t, err)
			assert.Equal(t, entry, got)
		}
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("upstream errors are not cached", func(t *testing.T) {
		var calls atomic.Int32
		upstream := LookupFunc(func(ctx context.Context, id string) (models.RegistryEntry, error) {
			calls.Add(1)
			return models.RegistryEntry{}, ErrNotRegistered
		})
		lookup := NewCachedLookup(testLogger(), upstream, &memoryCache{entries: map[string]models.RegistryEntry{}}, time.Second)

		_, err := lookup.Lookup(context.Background(), validSiret)
		assert.ErrorIs(t, err, ErrNotRegistered)
		_, err = lookup.Lookup(context.Background(), validSiret)
		assert.ErrorIs(t, err, ErrNotRegistered)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("caller that gives up does not fail the shared call", func(t *testing.T) {
		release := make(chan struct{})
		started := make(chan struct{}, 1)
		upstream := LookupFunc(func(ctx context.Context, id string) (models.RegistryEntry, error) {
			select {
			case started <- struct{}{}:
			default:
			}
			select {
			case <-release:
				return entry, nil
			case <-ctx.Done():
				return models.RegistryEntry{}, ctx.Err()
			}
		})
		lookup := NewCachedLookup(testLogger(), upstream, &memoryCache{entries: map[string]models.RegistryEntry{}}, time.Second)

		firstCtx, cancelFirst := context.WithCancel(context.Background())
		firstErr := make(chan error, 1)
		go func() {
			_, err := lookup.Lookup(firstCtx, validSiret)
			firstErr <- err
		}()
		<-started

		type result struct {
			entry models.RegistryEntry
			err   error
		}
		second := make(chan result, 1)
		go func() {
			got, err := lookup.Lookup(context.Background(), validSiret)
			second <- result{entry: got, err: err}
		}()
		time.Sleep(20 * time.Millisecond)

		cancelFirst()
		select {
		case err := <-firstErr:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("cancelled caller kept waiting")
		}

		close(release)
		select {
		case res := <-second:
			require.NoError(t, res.err)
			assert.Equal(t, entry, res.entry)
		case <-time.After(2 * time.Second):
			t.Fatal("second caller never returned")
		}
	})

	t.Run("shared call is bounded by its timeout", func(t *testing.T) {
		upstream := LookupFunc(func(ctx context.Context, id string) (models.RegistryEntry, error) {
			<-ctx.Done()
			return models.RegistryEntry{}, ctx.Err()
		})
		lookup := NewCachedLookup(testLogger(), upstream, &memoryCache{entries: map[string]models.RegistryEntry{}}, 20*time.Millisecond)

		_, err := lookup.Lookup(context.Background(), validSiret)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("cache read failure falls back to upstream", func(t *testing.T) {
		upstream := LookupFunc(func(ctx context.Context, id string) (models.RegistryEntry, error) {
			return entry, nil
		})
		cache := &memoryCache{entries: map[string]models.RegistryEntry{}, getErr: errors.New("cache down")}
		got, err := NewCachedLookup(testLogger(), upstream, cache, time.Second).Lookup(context.Background(), validSiret)
		require.NoError(t, err)
		assert.Equal(t, entry, got)
	})
}

func TestRateLimitedLookup(t *testing.T) {
	upstream := LookupFunc(func(ctx context.Context, id string) (models.RegistryEntry, error) {
		return models.RegistryEntry{Identifier: id}, nil
	})

	t.Run("within burst", func(t *testing.T) {
		lookup := NewRateLimitedLookup(upstream, 1, 2)
		for i := 0; i < 2; i++ {
			_, err := lookup.Lookup(context.Background(), validSiret)
			require.NoError(t, err)
		}
	})

	t.Run("waiting past the deadline fails", func(t *testing.T) {
		lookup := NewRateLimitedLookup(upstream, 0.001, 1)
		_, err := lookup.Lookup(context.Background(), validSiret)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err = lookup.Lookup(ctx, validSiret)
		assert.Error(t, err)
	})
}
