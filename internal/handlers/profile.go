package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"pairchat/internal/blob"
	"pairchat/internal/models"
	"pairchat/internal/store"
)

var validate = validator.New()

// UpsertProfileHandler creates or updates the profile for a number.
func UpsertProfileHandler(st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.ProfileRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request"})
		}
		if err := validate.Struct(req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
		}

		if _, err := st.UpsertProfile(c.Context(), req.Number, req.Name, req.Bio, req.Email); err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to save profile"})
		}
		return c.JSON(fiber.Map{"message": "Profile saved successfully"})
	}
}

// GetProfileHandler returns the authenticated user's profile.
func GetProfileHandler(st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		number := c.Locals("number").(string)

		user, err := st.GetUserByNumber(c.Context(), number)
		if errors.Is(err, store.ErrUserNotFound) {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"success": false, "message": "User not found"})
		}
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch profile"})
		}
		return c.JSON(user)
	}
}

// UploadPhotoHandler stores a profile image through the blob collaborator
// and records the returned URL on the user.
func UploadPhotoHandler(st store.Store, blobs blob.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		number := c.Locals("number").(string)

		// Expect a multipart form file named "photo"
		fileHeader, err := c.FormFile("photo")
		if err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "photo file is required"})
		}

		f, err := fileHeader.Open()
		if err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "unreadable photo"})
		}
		defer f.Close()

		name := fmt.Sprintf("%s_%d%s", number, time.Now().UnixNano(), filepath.Ext(fileHeader.Filename))
		url, err := blobs.Upload(c.Context(), name, f)
		if err != nil {
			return c.Status(http.StatusBadGateway).JSON(fiber.Map{"message": "failed to store photo"})
		}

		if err := st.SetImageURL(c.Context(), number, url); err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"message": "failed to save photo"})
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{"url": url})
	}
}
