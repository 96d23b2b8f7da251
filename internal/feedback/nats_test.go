// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package feedback

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
)

type fakeJetStream struct {
	streamErr error
	created   *jetstream.StreamConfig
	updated   *jetstream.StreamConfig
}

func (f *fakeJetStream) Stream(context.Context, string) (jetstream.Stream, error) {
	return nil, f.streamErr
}

func (f *fakeJetStream) CreateStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	f.created = &cfg
	return nil, nil
}

func (f *fakeJetStream) UpdateStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	f.updated = &cfg
	return nil, nil
}

func TestStreamInitializer_EnsureStream(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		streamErr  error
		wantCreate bool
		wantUpdate bool
		wantErr    bool
	}{
		{"creates missing stream", jetstream.ErrStreamNotFound, true, false, false},
		{"updates existing stream", nil, false, true, false},
		{"surfaces lookup failure", errors.New("nats: timeout"), false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			js := &fakeJetStream{streamErr: tt.streamErr}
			si, err := NewStreamInitializer(js, DefaultStreamConfig("smartrank.interactions"))
			if err != nil {
				t.Fatalf("NewStreamInitializer() error = %v", err)
			}

			_, err = si.EnsureStream(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("EnsureStream() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (js.created != nil) != tt.wantCreate || (js.updated != nil) != tt.wantUpdate {
				t.Errorf("created = %v, updated = %v", js.created != nil, js.updated != nil)
			}
			if cfg := js.created; cfg != nil {
				if cfg.Name != "SMARTRANK_INTERACTIONS" || cfg.Subjects[0] != "smartrank.interactions" {
					t.Errorf("stream config = %+v", cfg)
				}
				if cfg.Duplicates == 0 {
					t.Error("stream has no duplicate window")
				}
			}
		})
	}
}

func TestNewStreamInitializer_Validation(t *testing.T) {
	t.Parallel()
	if _, err := NewStreamInitializer(nil, DefaultStreamConfig("x")); err == nil {
		t.Error("NewStreamInitializer(nil) succeeded")
	}
	if _, err := NewStreamInitializer(&fakeJetStream{}, StreamConfig{Name: "S"}); err == nil {
		t.Error("NewStreamInitializer() without subjects succeeded")
	}
}

func TestStreamConfigForStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		maxStore int64
		want     int64
	}{
		{"unknown limit", 0, 1 << 30},
		{"small store", 128 << 20, (128 << 20) / 10 * 9},
		{"large store", 8 << 30, 1 << 30},
	}
	for _, tt := range tests {
		if got := StreamConfigForStore("t", tt.maxStore).MaxBytes; got != tt.want {
			t.Errorf("%s: MaxBytes = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestEmbeddedServer_StartsJetStream(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a NATS server")
	}
	srv, err := NewEmbeddedServer(&ServerConfig{
		Host:              "127.0.0.1",
		Port:              -1,
		StoreDir:          t.TempDir(),
		JetStreamMaxMem:   64 << 20,
		JetStreamMaxStore: 128 << 20,
	})
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error = %v", err)
	}
	defer srv.Shutdown()

	if !srv.IsRunning() {
		t.Fatal("server not running")
	}
	if err := EnsureStreamAt(context.Background(), srv.ClientURL(), StreamConfigForStore("smartrank.interactions", 128<<20)); err != nil {
		t.Errorf("EnsureStreamAt() error = %v", err)
	}
}
