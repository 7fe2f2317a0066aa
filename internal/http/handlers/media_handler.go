package handlers

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	applog "shopforge/internal/log"
)

// MediaHandler serves uploaded files from Dir.
type MediaHandler struct {
	Dir string
}

func (h *MediaHandler) Serve(c *fiber.Ctx) error {
	path := c.Params("*")
	rawLower := strings.ToLower(path)
	// Block encoded traversal attempts as well as raw .. or null bytes
	if strings.Contains(rawLower, "..") || strings.Contains(rawLower, "%2e") || strings.Contains(rawLower, "\x00") {
		applog.Security(c, "media.traversal.block", map[string]any{"path": path})
		return fiber.ErrNotFound
	}
	clean := filepath.Clean(path)
	if clean == "." || strings.Contains(clean, "..") || filepath.IsAbs(clean) {
		applog.Security(c, "media.traversal.block", map[string]any{"path": path})
		return fiber.ErrNotFound
	}
	full := filepath.Join(h.Dir, clean)
	if fi, err := os.Stat(full); err != nil || !fi.Mode().IsRegular() {
		return fiber.ErrNotFound
	}
	return c.SendFile(full, true)
}
