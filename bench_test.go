package idforge

import (
	"context"
	"testing"
)

func BenchmarkVerifyAccess(b *testing.B) {
	engine, _, _ := newTestEngine(b, testConfig(b))
	result := mustLogin(b, engine)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.VerifyAccess(result.AccessToken); err != nil {
			b.Fatalf("VerifyAccess failed: %v", err)
		}
	}
}

func BenchmarkResolvePermissions(b *testing.B) {
	engine, _, _ := newTestEngine(b, testConfig(b))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if set := engine.ResolvePermissions("user", "admin"); len(set) == 0 {
			b.Fatal("ResolvePermissions returned an empty set")
		}
	}
}

func BenchmarkRefresh(b *testing.B) {
	engine, _, _ := newTestEngine(b, testConfig(b))
	result := mustLogin(b, engine)
	ctx := context.Background()

	refresh := result.RefreshToken
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rotated, err := engine.Refresh(ctx, refresh)
		if err != nil {
			b.Fatalf("Refresh failed: %v", err)
		}
		refresh = rotated.RefreshToken
	}
}
