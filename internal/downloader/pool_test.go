package downloader

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	errs "icloudalbum/pkg/errors"
	"icloudalbum/pkg/icloud"
	"icloudalbum/pkg/logger"
	"icloudalbum/pkg/models"
	"icloudalbum/pkg/ratelimit"
)

// MockClient is a mock implementation of the shared streams client
type MockClient struct {
	downloadDelay   time.Duration
	failGUIDs       map[string]error
	downloadCounter int32
	active          int32
	maxActive       int32
}

func (m *MockClient) DownloadPhoto(ctx context.Context, photo models.Photo) (*icloud.Download, error) {
	atomic.AddInt32(&m.downloadCounter, 1)
	n := atomic.AddInt32(&m.active, 1)
	defer atomic.AddInt32(&m.active, -1)
	for {
		peak := atomic.LoadInt32(&m.maxActive)
		if n <= peak || atomic.CompareAndSwapInt32(&m.maxActive, peak, n) {
			break
		}
	}

	if m.downloadDelay > 0 {
		select {
		case <-time.After(m.downloadDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := m.failGUIDs[photo.GUID]; ok {
		return nil, err
	}
	return &icloud.Download{
		PhotoGUID: photo.GUID,
		Key:       "original",
		Data:      []byte("mock photo data"),
		MIMEType:  "image/jpeg",
		Extension: ".jpg",
	}, nil
}

func (m *MockClient) GetDownloadCount() int {
	return int(atomic.LoadInt32(&m.downloadCounter))
}

// MockStorage is an in-memory PhotoStorage
type MockStorage struct {
	saved     map[string]string
	saveError error
	mu        sync.Mutex
}

func NewMockStorage() *MockStorage {
	return &MockStorage{saved: make(map[string]string)}
}

func (m *MockStorage) IsDownloaded(guid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.saved[guid]
	return ok
}

func (m *MockStorage) FileFor(guid string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.saved[guid]
	return name, ok
}

func (m *MockStorage) Save(r io.Reader, guid, name string) (string, error) {
	if m.saveError != nil {
		return "", m.saveError
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[guid] = name
	return "/out/" + name, nil
}

func (m *MockStorage) GetSavedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func makePhotos(n int) []models.Photo {
	photos := make([]models.Photo, n)
	for i := range photos {
		photos[i] = models.Photo{GUID: fmt.Sprintf("guid%d", i), Caption: fmt.Sprintf("cap %d", i)}
	}
	return photos
}

func TestPoolBasicFunctionality(t *testing.T) {
	mockClient := &MockClient{downloadDelay: 10 * time.Millisecond}
	mockStorage := NewMockStorage()

	var callbacks int32
	pool := NewPool(mockClient, mockStorage, Options{
		Workers:  3,
		Limiter:  ratelimit.NewTokenBucket(100, time.Second),
		Logger:   logger.NewTestLogger(),
		OnResult: func(Result) { atomic.AddInt32(&callbacks, 1) },
	})

	numJobs := 10
	results, stats, err := pool.Run(context.Background(), makePhotos(numJobs))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(results) != numJobs {
		t.Fatalf("Expected %d results, got %d", numJobs, len(results))
	}
	for i, r := range results {
		if r.Error != nil {
			t.Errorf("Result %d failed: %v", i, r.Error)
		}
		if r.Job.Index != i {
			t.Errorf("Results should be in album order: slot %d holds job %d", i, r.Job.Index)
		}
		want := fmt.Sprintf("%d_guid%d_cap %d.jpg", i+1, i, i)
		if r.File != want {
			t.Errorf("File = %q, want %q", r.File, want)
		}
	}

	if stats.Downloaded != numJobs || stats.Bytes != int64(numJobs*len("mock photo data")) {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if mockClient.GetDownloadCount() != numJobs {
		t.Errorf("Expected %d download calls, got %d", numJobs, mockClient.GetDownloadCount())
	}
	if mockStorage.GetSavedCount() != numJobs {
		t.Errorf("Expected %d saved photos, got %d", numJobs, mockStorage.GetSavedCount())
	}
	if int(atomic.LoadInt32(&callbacks)) != numJobs {
		t.Errorf("Expected %d callbacks, got %d", numJobs, callbacks)
	}
}

func TestPoolWithErrors(t *testing.T) {
	mockClient := &MockClient{failGUIDs: map[string]error{
		"guid1": &errs.NoUsableDerivativeError{PhotoGUID: "guid1"},
		"guid3": &errs.StatusError{Code: 500, URL: "https://cdn/x"},
	}}
	mockStorage := NewMockStorage()
	pool := NewPool(mockClient, mockStorage, Options{Workers: 2, Logger: logger.NewTestLogger()})

	results, stats, err := pool.Run(context.Background(), makePhotos(5))
	if err != nil {
		t.Fatalf("Per-photo failures must not fail the run: %v", err)
	}

	if stats.Failed != 2 || stats.Downloaded != 3 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if errs.TypeOf(results[1].Error) != errs.ErrorTypeNoDerivative {
		t.Errorf("Expected no_derivative for guid1, got %v", results[1].Error)
	}
	if results[3].Error == nil || results[3].File != "" {
		t.Error("guid3 should have failed without a file")
	}
}

func TestPoolSaveError(t *testing.T) {
	mockStorage := NewMockStorage()
	mockStorage.saveError = fmt.Errorf("disk full")
	pool := NewPool(&MockClient{}, mockStorage, Options{Workers: 1, Logger: logger.NewTestLogger()})

	results, stats, err := pool.Run(context.Background(), makePhotos(2))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Failed != 2 {
		t.Errorf("Expected 2 failures, got %+v", stats)
	}
	if results[0].Derivative != "original" {
		t.Error("Download details should be kept on a save failure")
	}
}

func TestPoolSkipsExisting(t *testing.T) {
	mockClient := &MockClient{}
	mockStorage := NewMockStorage()
	mockStorage.saved["guid0"] = "1_guid0.jpg"

	pool := NewPool(mockClient, mockStorage, Options{Workers: 2, Logger: logger.NewTestLogger()})
	results, stats, err := pool.Run(context.Background(), makePhotos(3))
	if err != nil {
		t.Fatal(err)
	}

	if !results[0].Skipped || results[0].File != "1_guid0.jpg" {
		t.Errorf("guid0 should be skipped with its existing file: %+v", results[0])
	}
	if stats.Skipped != 1 || stats.Downloaded != 2 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if mockClient.GetDownloadCount() != 2 {
		t.Errorf("Expected 2 download calls, got %d", mockClient.GetDownloadCount())
	}

	// overwrite downloads everything again
	pool = NewPool(mockClient, mockStorage, Options{Workers: 2, Overwrite: true, Logger: logger.NewTestLogger()})
	_, stats, err = pool.Run(context.Background(), makePhotos(3))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Downloaded != 3 {
		t.Errorf("Expected 3 downloads with overwrite, got %+v", stats)
	}
}

func TestPoolConcurrencyLimit(t *testing.T) {
	mockClient := &MockClient{downloadDelay: 30 * time.Millisecond}
	pool := NewPool(mockClient, NewMockStorage(), Options{Workers: 3, Logger: logger.NewTestLogger()})

	if _, _, err := pool.Run(context.Background(), makePhotos(12)); err != nil {
		t.Fatal(err)
	}
	if peak := atomic.LoadInt32(&mockClient.maxActive); peak > 3 {
		t.Errorf("At most 3 downloads should run at once, saw %d", peak)
	}
}

func TestPoolCancellation(t *testing.T) {
	mockClient := &MockClient{downloadDelay: time.Second}
	pool := NewPool(mockClient, NewMockStorage(), Options{Workers: 2, Logger: logger.NewTestLogger()})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, stats, err := pool.Run(ctx, makePhotos(10))
	if err == nil {
		t.Error("Expected an error from a cancelled run")
	}
	if stats.Downloaded != 0 {
		t.Errorf("Nothing should have been downloaded: %+v", stats)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Run should stop promptly after cancellation")
	}
}

func TestNewPoolDefaults(t *testing.T) {
	pool := NewPool(&MockClient{}, NewMockStorage(), Options{})
	if pool.workers != 1 {
		t.Errorf("Expected 1 worker by default, got %d", pool.workers)
	}
	if _, ok := pool.limiter.(ratelimit.Unlimited); !ok {
		t.Error("Expected unlimited limiter by default")
	}
}
