package infrastructure

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/yourusername/mediaq-go/internal/domain"
)

const installProgressInterval = 250 * time.Millisecond

// errChecksumUnavailable marks a checksum list that could not be used; the install proceeds unverified
var errChecksumUnavailable = errors.New("checksum unavailable")

// progressReader publishes throttled byte counts while an artifact streams in
type progressReader struct {
	r         io.Reader
	tool      domain.Tool
	total     *int64
	read      int64
	last      time.Time
	publisher domain.EventPublisher
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if now := time.Now(); now.Sub(p.last) >= installProgressInterval {
		p.last = now
		p.emit()
	}
	return n, err
}

func (p *progressReader) emit() {
	if p.publisher != nil {
		p.publisher.Publish(domain.NewInstallEvent(p.tool, p.read, p.total))
	}
}

// downloadArtifact streams url into dst and returns the hex sha256 of the body
func downloadArtifact(ctx context.Context, client *http.Client, src releaseSource, dst io.Writer, publisher domain.EventPublisher) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.url, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("unexpected status %s from %s", resp.Status, src.url)
	}

	var total *int64
	if resp.ContentLength >= 0 {
		n := resp.ContentLength
		total = &n
	}

	hasher := sha256.New()
	reader := &progressReader{r: resp.Body, tool: src.tool, total: total, publisher: publisher}
	reader.emit()

	written, err := io.Copy(io.MultiWriter(dst, hasher), reader)
	if err != nil {
		return "", written, err
	}
	if total != nil && written != *total {
		return "", written, fmt.Errorf("short download: got %d of %d bytes", written, *total)
	}
	reader.emit()

	return hex.EncodeToString(hasher.Sum(nil)), written, nil
}

// fetchExpectedChecksum looks up assetName in a sha256sum-style list
func fetchExpectedChecksum(ctx context.Context, client *http.Client, checksumURL, assetName string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checksumURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errChecksumUnavailable, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errChecksumUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %s", errChecksumUnavailable, resp.Status)
	}

	sum, ok := findChecksum(resp.Body, assetName)
	if !ok {
		return "", fmt.Errorf("%w: %s not listed", errChecksumUnavailable, assetName)
	}
	return sum, nil
}

// findChecksum parses "<hex>  <name>" lines; a leading '*' marks binary mode
func findChecksum(r io.Reader, assetName string) (string, bool) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		name := strings.TrimPrefix(fields[len(fields)-1], "*")
		if name == assetName || filepath.Base(name) == assetName {
			return strings.ToLower(fields[0]), true
		}
	}
	return "", false
}

// extractMembers copies the wanted executables out of an archive into temp files in dir.
// The returned map goes from member name to temp path.
func extractMembers(kind archiveKind, archivePath, dir string, members []string) (map[string]string, error) {
	wanted := make(map[string]bool, len(members))
	for _, m := range members {
		wanted[m] = true
	}

	extracted := make(map[string]string)
	cleanup := func() {
		for _, p := range extracted {
			os.Remove(p)
		}
	}

	var err error
	switch kind {
	case archiveZip:
		err = extractZip(archivePath, dir, wanted, extracted)
	case archiveTarXZ:
		err = extractTarXZ(archivePath, dir, wanted, extracted)
	default:
		err = fmt.Errorf("unsupported archive kind %q", kind)
	}
	if err != nil {
		cleanup()
		return nil, err
	}

	if len(members) > 0 {
		if _, ok := extracted[members[0]]; !ok {
			cleanup()
			return nil, fmt.Errorf("archive does not contain %s", members[0])
		}
	}
	return extracted, nil
}

func extractZip(archivePath, dir string, wanted map[string]bool, extracted map[string]string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		name := filepath.Base(f.Name)
		if f.FileInfo().IsDir() || !wanted[name] || extracted[name] != "" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s in zip: %w", f.Name, err)
		}
		tmpPath, err := writeTempFile(dir, rc)
		rc.Close()
		if err != nil {
			return err
		}
		extracted[name] = tmpPath
	}
	return nil
}

func extractTarXZ(archivePath, dir string, wanted map[string]bool, extracted map[string]string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	xzr, err := xz.NewReader(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("failed to open xz stream: %w", err)
	}

	tr := tar.NewReader(xzr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar: %w", err)
		}
		name := filepath.Base(hdr.Name)
		if hdr.Typeflag != tar.TypeReg || !wanted[name] || extracted[name] != "" {
			continue
		}
		tmpPath, err := writeTempFile(dir, tr)
		if err != nil {
			return err
		}
		extracted[name] = tmpPath
	}
}

func writeTempFile(dir string, r io.Reader) (string, error) {
	tmp, err := os.CreateTemp(dir, ".extract-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// promoteExecutable marks tmpPath executable and atomically moves it to dest
func promoteExecutable(tmpPath, dest string) error {
	if err := os.Chmod(tmpPath, 0755); err != nil {
		return fmt.Errorf("failed to chmod: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to move into place: %w", err)
	}
	return nil
}
