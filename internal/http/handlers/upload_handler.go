package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"shopforge/internal/blob"
	applog "shopforge/internal/log"
	"shopforge/internal/services"
)

const maxUploadFiles = 10

type UploadHandler struct {
	Stores *services.StoreService
	Blobs  blob.Store
}

// Upload stores the multipart "images" files of an active store.
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	st, err := h.Stores.Get(c.UserContext(), c.Params("storeId"))
	if err != nil {
		return err
	}
	form, err := c.MultipartForm()
	if err != nil {
		return badRequest("multipart form expected")
	}
	files := form.File["images"]
	if len(files) == 0 {
		return badRequest("no images uploaded")
	}
	if len(files) > maxUploadFiles {
		return badRequest("too many files")
	}

	out := make([]blob.Object, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return err
		}
		obj, err := h.Blobs.Save(c.UserContext(), st.ID, fh.Filename, f)
		_ = f.Close()
		switch {
		case errors.Is(err, blob.ErrUnsupportedType):
			applog.Security(c, "upload.type.reject", map[string]any{"store_id": st.ID, "name": fh.Filename})
			return badRequest("only jpeg, png, gif and webp images are allowed")
		case errors.Is(err, blob.ErrTooLarge):
			return badRequest("file too large")
		case err != nil:
			return err
		}
		out = append(out, obj)
	}
	applog.Audit(c, "upload.images", map[string]any{"store_id": st.ID, "count": len(out)})
	return c.JSON(fiber.Map{"success": true, "images": out})
}
