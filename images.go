package spacetraveling

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"path/filepath"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/eringen/spacetraveling/cms"
)

const (
	maxBannerWidth = 1200
	jpegQuality    = 80
	maxBannerSize  = 20 << 20 // 20MB
	bannersSubdir  = "banners"
)

// processImage decodes an image from src, shrinks it to maxBannerWidth if
// wider, and encodes it as JPEG.
func processImage(src io.Reader) (data []byte, width, height int, err error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxBannerWidth {
		newH := h * maxBannerWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxBannerWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w, h = maxBannerWidth, newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, 0, 0, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), w, h, nil
}

// localizeBanner downloads the banner of post, resizes it, and writes it
// under outDir/public/banners. It returns the site path of the written file
// and its size in bytes.
func (a *App) localizeBanner(ctx context.Context, hc *http.Client, post cms.Post, outDir string) (string, int, error) {
	if !safePathSegment(post.UID) {
		return "", 0, fmt.Errorf("unsafe uid %q", post.UID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, post.Data.Banner.URL, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("fetch banner: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("fetch banner: status %d", resp.StatusCode)
	}

	data, _, _, err := processImage(io.LimitReader(resp.Body, maxBannerSize))
	if err != nil {
		return "", 0, err
	}
	name := post.UID + ".jpg"
	dest := filepath.Join(outDir, "public", bannersSubdir, name)
	if err := atomicWriteFile(dest, data); err != nil {
		return "", 0, err
	}
	return "/public/" + bannersSubdir + "/" + url.PathEscape(name), len(data), nil
}

// bannerURL returns the localized banner path for post if one was written,
// and the CMS URL otherwise.
func (a *App) bannerURL(post cms.Post) string {
	a.bannerMu.RLock()
	defer a.bannerMu.RUnlock()
	if local, ok := a.banners[post.UID]; ok {
		return local
	}
	return post.Data.Banner.URL
}

func (a *App) setBanner(uid, path string) {
	a.bannerMu.Lock()
	a.banners[uid] = path
	a.bannerMu.Unlock()
}
