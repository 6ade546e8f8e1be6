package pool

import (
	"sync"
	"testing"
)

// =============================================================================
// Configuration Tests
// =============================================================================

func TestConfigure(t *testing.T) {
	origConfig := globalConfig
	defer func() {
		Configure(origConfig)
	}()

	t.Run("enable pooling", func(t *testing.T) {
		Configure(PoolConfig{Enabled: true, MaxBuilderSize: 512})

		if !IsEnabled() {
			t.Error("IsEnabled() = false, want true")
		}
		if globalConfig.MaxBuilderSize != 512 {
			t.Errorf("MaxBuilderSize = %d, want 512", globalConfig.MaxBuilderSize)
		}
	})

	t.Run("zero size falls back", func(t *testing.T) {
		Configure(PoolConfig{Enabled: true})
		if globalConfig.MaxBuilderSize != 64*1024 {
			t.Errorf("MaxBuilderSize = %d, want %d", globalConfig.MaxBuilderSize, 64*1024)
		}
	})

	t.Run("disable pooling", func(t *testing.T) {
		Configure(PoolConfig{Enabled: false})

		if IsEnabled() {
			t.Error("IsEnabled() = true, want false")
		}
		b := GetStringBuilder()
		b.WriteString("x")
		PutStringBuilder(b)
	})
}

// =============================================================================
// String Builder Pool Tests
// =============================================================================

func TestStringBuilderPool(t *testing.T) {
	Configure(PoolConfig{Enabled: true})

	t.Run("basic operations", func(t *testing.T) {
		b := GetStringBuilder()
		if b.Len() != 0 {
			t.Errorf("Len() = %d, want 0", b.Len())
		}

		b.WriteString(".property(")
		b.WriteString("'name'")
		b.WriteByte(')')

		if b.String() != ".property('name')" {
			t.Errorf("String() = %q, want %q", b.String(), ".property('name')")
		}
		if b.Len() != 17 {
			t.Errorf("Len() = %d, want 17", b.Len())
		}

		PutStringBuilder(b)
	})

	t.Run("reset on reuse", func(t *testing.T) {
		b := GetStringBuilder()
		b.WriteString("test")
		PutStringBuilder(b)

		b2 := GetStringBuilder()
		if b2.Len() != 0 {
			t.Errorf("reused builder Len() = %d, want 0", b2.Len())
		}
		PutStringBuilder(b2)
	})

	t.Run("nil put does not panic", func(t *testing.T) {
		PutStringBuilder(nil)
	})

	t.Run("oversized buffer not pooled", func(t *testing.T) {
		b := GetStringBuilder()
		for i := 0; i < 70000; i++ {
			b.WriteByte('x')
		}
		PutStringBuilder(b)
	})
}

func TestConcurrentPoolAccess(t *testing.T) {
	Configure(PoolConfig{Enabled: true})

	const goroutines = 100
	const iterations = 100

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				b := GetStringBuilder()
				b.WriteString("test")
				_ = b.String()
				PutStringBuilder(b)
			}
		}()
	}

	wg.Wait()
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkStringBuilderPool(b *testing.B) {
	Configure(PoolConfig{Enabled: true})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sb := GetStringBuilder()
		sb.WriteString(".property(list, 'name', gizmo_p_1)")
		_ = sb.String()
		PutStringBuilder(sb)
	}
}
