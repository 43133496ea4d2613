// Package workspace reads UEFN code-workspace files, discovers digest files
// on disk and fetches remote digests.
package workspace

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-getter"
	"go.uber.org/zap"

	"github.com/teranos/verseblueprint/errors"
	"github.com/teranos/verseblueprint/logger"
)

// DigestSuffix marks Verse digest files
const DigestSuffix = ".digest.verse"

// Metadata is what the editor needs from a .code-workspace file.
type Metadata struct {
	FolderPaths     []string          `json:"folder_paths"`
	VerseFolderPath string            `json:"verse_folder_path"` // Folder whose name contains "Verse"
	Settings        map[string]string `json:"settings"`
}

type workspaceFile struct {
	Folders []struct {
		Path string  `json:"path"`
		Name *string `json:"name"`
	} `json:"folders"`
	Settings map[string]json.RawMessage `json:"settings"`
}

// LoadWorkspace reads a VS Code workspace file. A missing file returns an
// error wrapping errors.ErrNotFound; malformed JSON wraps
// errors.ErrInvalidRequest.
func LoadWorkspace(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("workspace file %s", path)
		}
		return nil, errors.Wrapf(err, "failed to read workspace %s", path)
	}

	var ws workspaceFile
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, errors.Wrap(
			errors.NewInvalidRequestError("failed to parse workspace JSON: %v", err),
			path)
	}

	meta := &Metadata{
		FolderPaths: []string{},
		Settings:    map[string]string{},
	}
	for _, folder := range ws.Folders {
		meta.FolderPaths = append(meta.FolderPaths, folder.Path)
		if folder.Name != nil && strings.Contains(*folder.Name, "Verse") {
			meta.VerseFolderPath = folder.Path
		}
	}
	for key, raw := range ws.Settings {
		meta.Settings[key] = settingValue(raw)
	}
	return meta, nil
}

// String settings are unquoted; anything else keeps its JSON text.
func settingValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}

// ResolveFolder makes a workspace folder path absolute relative to the
// workspace file's directory.
func ResolveFolder(workspacePath, folder string) string {
	if filepath.IsAbs(folder) {
		return folder
	}
	return filepath.Join(filepath.Dir(workspacePath), folder)
}

// FindDigestFiles walks root for *.digest.verse files, sorted by path.
// Directories that cannot be read are skipped.
func FindDigestFiles(root string, log *zap.SugaredLogger) ([]string, error) {
	log = logger.OrNop(log)

	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("directory %s", root)
		}
		return nil, errors.Wrapf(err, "failed to stat %s", root)
	}

	files := []string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				log.Debugw("Skipping unreadable directory", logger.FieldFile, path, logger.FieldError, err)
				return fs.SkipDir
			}
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), DigestSuffix) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scan %s", root)
	}

	sort.Strings(files)
	log.Debugw("Found digest files", logger.FieldFile, root, logger.FieldCount, len(files))
	return files, nil
}

// ExpandPath resolves ~, relative paths and file:// URLs to an absolute
// local path. Remote sources are rejected; use Fetch for those.
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "failed to get home directory")
		}
		path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}

	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}

	detected, err := getter.Detect(path, pwd, getter.Detectors)
	if err != nil {
		return "", errors.Wrap(err, "invalid path")
	}

	u, err := url.Parse(detected)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse path")
	}

	switch u.Scheme {
	case "file":
		return filepath.Clean(u.Path), nil
	case "":
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", errors.Wrap(err, "failed to make absolute path")
		}
		return abs, nil
	default:
		return "", errors.NewInvalidRequestError("unsupported path scheme: %s (expected file:// or local path)", u.Scheme)
	}
}

// IsRemote reports whether src names a remote source go-getter can fetch.
func IsRemote(src string) bool {
	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}

	detected, err := getter.Detect(src, pwd, getter.Detectors)
	if err != nil {
		return false
	}

	u, err := url.Parse(detected)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Scheme != "file"
}

// Fetch downloads a single digest file from src (any go-getter source:
// https URL, s3, gcs, git::...//file) to dst.
func Fetch(ctx context.Context, src, dst string, log *zap.SugaredLogger) error {
	log = logger.OrNop(log)

	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.Wrapf(err, "failed to create %s", filepath.Dir(dst))
	}

	log.Infow("Fetching digest", "source", src, logger.FieldOutput, dst)

	client := &getter.Client{
		Ctx:     ctx,
		Src:     src,
		Dst:     dst,
		Pwd:     pwd,
		Mode:    getter.ClientModeFile,
		Getters: getter.Getters,
	}
	if err := client.Get(); err != nil {
		return errors.Wrapf(err, "failed to fetch %s", src)
	}

	log.Infow("Fetch completed", logger.FieldOutput, dst)
	return nil
}
