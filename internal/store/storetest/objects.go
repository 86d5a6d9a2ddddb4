package storetest

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/finevents/apiserver/internal/storage"
)

// Object is a stored blob with its content type.
type Object struct {
	Data        []byte
	ContentType string
}

// Objects is an in-memory storage.ObjectStorage backend.
type Objects struct {
	mu      sync.Mutex
	objects map[string]Object
}

func NewObjects() *Objects {
	return &Objects{objects: map[string]Object{}}
}

func (o *Objects) EnsureBucket(context.Context) error { return nil }

func (o *Objects) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[key] = Object{Data: data, ContentType: contentType}
	return nil
}

func (o *Objects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	obj, ok := o.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}

func (o *Objects) Delete(_ context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, key)
	return nil
}

func (o *Objects) Bucket() string { return "memory" }

// Keys returns the stored keys in no particular order.
func (o *Objects) Keys() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	keys := make([]string, 0, len(o.objects))
	for k := range o.objects {
		keys = append(keys, k)
	}
	return keys
}
