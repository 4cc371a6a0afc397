package result

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"sync"
	"time"

	"github.com/eric2788/fileconv/internal/modules/config"
	"github.com/eric2788/fileconv/pkg/db"
	"github.com/eric2788/fileconv/pkg/pool"
	"github.com/eric2788/fileconv/pkg/signeddownload"
	"github.com/eric2788/fileconv/utils"
	"github.com/gabriel-vasile/mimetype"
	"github.com/jellydator/ttlcache/v3"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
)

var logger = logrus.WithField("service", "result")

var (
	ErrHandleNotFound = errors.New("result not found")
	ErrLinkRevoked    = errors.New("download link expired or revoked")
	ErrClosed         = errors.New("result store is closed")
)

const (
	blobBucket = "Result_Blobs"
	metaBucket = "Result_Meta"

	linkPrefix = "/results/"
)

// Handle describes one converted output held by the store until released.
type Handle struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

type link struct {
	token     string
	expiresAt time.Time
}

// Service keeps converted outputs in a bbolt file that lives only as long as
// the process, and issues signed, revocable download links for them.
type Service struct {
	client     *db.Client
	blobs      *db.Bucket
	metas      *db.Bucket
	serializer *pool.Serializer

	signer  *signeddownload.Client
	linkTTL time.Duration
	// token id -> handle id of every link still accepted
	allowed *ttlcache.Cache[string, string]

	mu      sync.Mutex
	current map[string]link
	closed  bool
}

func NewService(lc fx.Lifecycle, cfg *config.Config) (*Service, error) {
	// links get their own key so they never pass as API tokens
	svc, err := Open(cfg.WorkDir, []byte("download:"+cfg.JwtSecret), cfg.DownloadLinkTTL)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(svc.Close))
	return svc, nil
}

// Open creates a store whose database file is placed under dir.
func Open(dir string, secret []byte, linkTTL time.Duration) (*Service, error) {
	if linkTTL <= 0 {
		linkTTL = signeddownload.DefaultExpireAfter
	}
	client, err := db.OpenEphemeral(dir, "results-*.db")
	if err != nil {
		return nil, err
	}
	blobs, err := client.Bucket(blobBucket)
	if err != nil {
		client.Close()
		return nil, err
	}
	metas, err := client.Bucket(metaBucket)
	if err != nil {
		client.Close()
		return nil, err
	}

	svc := &Service{
		client:     client,
		blobs:      blobs,
		metas:      metas,
		serializer: pool.NewSerializer(),
		signer:     signeddownload.NewClient(secret),
		linkTTL:    linkTTL,
		allowed: ttlcache.New(
			ttlcache.WithTTL[string, string](linkTTL),
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
		current: make(map[string]link),
	}
	go svc.allowed.Start()
	return svc, nil
}

func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.allowed.Stop()
	s.allowed.DeleteAll()
	return s.client.Close()
}

// Save stores data as a new result named filename.
func (s *Service) Save(ctx context.Context, filename string, data []byte) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, ErrClosed
	}
	id, err := utils.NewUUIDv4()
	if err != nil {
		return nil, err
	}
	handle := &Handle{
		ID:          id,
		Filename:    filename,
		ContentType: detectContentType(filename, data),
		Size:        int64(len(data)),
		CreatedAt:   time.Now(),
	}
	meta, err := s.serializer.Serialize(handle)
	if err != nil {
		return nil, fmt.Errorf("serialize result %s: %w", id, err)
	}
	if err := s.blobs.Put([]byte(id), data); err != nil {
		return nil, fmt.Errorf("store result %s: %w", id, err)
	}
	if err := s.metas.Put([]byte(id), meta); err != nil {
		_ = s.blobs.Delete([]byte(id))
		return nil, fmt.Errorf("store result %s: %w", id, err)
	}
	logger.Debugf("stored result %s (%s, %d bytes)", id, filename, handle.Size)
	return handle, nil
}

func (s *Service) Get(id string) (*Handle, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	var handle *Handle
	err := s.metas.GetFunc([]byte(id), func(v []byte) error {
		handle = &Handle{}
		return s.serializer.Deserialize(v, handle)
	})
	if err != nil {
		return nil, err
	} else if handle == nil {
		return nil, ErrHandleNotFound
	}
	return handle, nil
}

// Open returns the handle together with a copy of its bytes.
func (s *Service) Open(id string) (*Handle, []byte, error) {
	handle, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Get([]byte(id))
	if err != nil {
		return nil, nil, err
	} else if data == nil {
		return nil, nil, ErrHandleNotFound
	}
	return handle, data, nil
}

// Release drops the result and revokes every link issued for it.
// Releasing an unknown id is a no-op.
func (s *Service) Release(id string) error {
	s.revoke(id)
	if s.isClosed() {
		return nil
	}
	if err := s.blobs.Delete([]byte(id)); err != nil {
		return err
	}
	return s.metas.Delete([]byte(id))
}

func (s *Service) Count() (int, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}
	return s.metas.Count()
}

// Link returns a download URL for the result, reusing the current link while
// more than half of its lifetime is left.
func (s *Service) Link(id string) (string, error) {
	if _, err := s.Get(id); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if l, ok := s.current[id]; ok && l.expiresAt.Sub(now) > s.linkTTL/2 {
		return linkPrefix + l.token, nil
	}

	tokenID, err := utils.NewUUIDv4()
	if err != nil {
		return "", err
	}
	exp := now.Add(s.linkTTL)
	token, err := s.signer.GenerateDownloadToken(id, tokenID, exp)
	if err != nil {
		return "", err
	}
	s.allowed.Set(tokenID, id, s.linkTTL)
	s.current[id] = link{token: token, expiresAt: exp}
	return linkPrefix + token, nil
}

// Resolve validates a download token and returns the result it grants.
func (s *Service) Resolve(token string) (string, error) {
	claims, err := s.signer.ParseDownloadToken(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLinkRevoked, err)
	}
	item := s.allowed.Get(claims.ID)
	if item == nil || item.Value() != claims.HandleID {
		return "", ErrLinkRevoked
	}
	return claims.HandleID, nil
}

func (s *Service) revoke(id string) {
	s.mu.Lock()
	delete(s.current, id)
	s.mu.Unlock()

	for tokenID, item := range s.allowed.Items() {
		if item.Value() == id {
			s.allowed.Delete(tokenID)
		}
	}
}

func (s *Service) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func detectContentType(filename string, data []byte) string {
	detected := mimetype.Detect(data)
	if !detected.Is("application/octet-stream") {
		return detected.String()
	}
	if byExt := mime.TypeByExtension(filepath.Ext(filename)); byExt != "" {
		return byExt
	}
	return detected.String()
}
