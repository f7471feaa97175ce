package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"pairchat/internal/models"
	"pairchat/internal/services"
	"pairchat/internal/store"
)

// AddContactHandler appends a contact to the owner's list.
func AddContactHandler(contactService *services.ContactService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.AddContactRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid request"})
		}
		if err := validate.Struct(req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": err.Error()})
		}

		contact, err := contactService.AddContact(c.Context(), req.Number, req.ContactNumber, req.ContactName)
		if errors.Is(err, store.ErrUserNotFound) {
			return c.JSON(fiber.Map{"success": false, "message": "Number not found"})
		}
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to add contact"})
		}

		return c.JSON(fiber.Map{
			"success":  true,
			"message":  "Contact added successfully",
			"contacts": contact,
		})
	}
}

// ListContactsHandler returns the contact list for a number.
func ListContactsHandler(contactService *services.ContactService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		number := c.Query("number")
		if number == "" {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "number is required"})
		}

		contacts, err := contactService.ListContacts(c.Context(), number)
		if errors.Is(err, store.ErrUserNotFound) {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"success": false, "message": "User not found"})
		}
		if errors.Is(err, store.ErrNoContacts) {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"success": false, "message": "No contacts found for this user"})
		}
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch contacts"})
		}

		return c.JSON(fiber.Map{"success": true, "contacts": contacts})
	}
}
