package storage

import (
	"context"
	"net/url"
	"strings"

	"PChat/tools/errs"
)

// ImageStore turns the image a client submitted into the reference that is
// persisted with a message or profile.
type ImageStore interface {
	Put(ctx context.Context, image string) (string, error)
}

// PassthroughImages stores nothing: it accepts http(s) URLs and data URIs as
// they are.
type PassthroughImages struct {
	MaxLen int // 0 means no limit
}

func (p PassthroughImages) Put(_ context.Context, image string) (string, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return "", nil
	}
	if p.MaxLen > 0 && len(image) > p.MaxLen {
		return "", errs.ErrArgs.WrapMsg("image too large", "len", len(image), "max", p.MaxLen)
	}
	if strings.HasPrefix(image, "data:image/") {
		return image, nil
	}
	u, err := url.Parse(image)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errs.ErrArgs.WrapMsg("image must be an http(s) url or a data uri")
	}
	return image, nil
}
