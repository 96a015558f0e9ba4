package handlers

import (
	"context"
	"encoding/base64"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"wingmate/internal/services"
)

// maxPhotoBytes bounds a decoded profile photo.
const maxPhotoBytes = 20 * 1024 * 1024

// ProfileHandler handles profile-sighting reports
type ProfileHandler struct {
	avatarService *services.AvatarService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(avatarService *services.AvatarService) *ProfileHandler {
	return &ProfileHandler{avatarService: avatarService}
}

// reportProfileBody is the inbound JSON shape; the photo travels base64.
type reportProfileBody struct {
	Name            string   `json:"name"`
	Platform        string   `json:"platform"`
	Username        string   `json:"username,omitempty"`
	Age             *int     `json:"age,omitempty"`
	Location        string   `json:"location,omitempty"`
	Bio             string   `json:"bio,omitempty"`
	Interests       []string `json:"interests,omitempty"`
	PhotoBase64     string   `json:"photo_base64,omitempty"`
	FaceDescription string   `json:"face_description,omitempty"`
}

// ReportProfile handles a newly observed profile sighting
// POST /api/v1/profiles
func (h *ProfileHandler) ReportProfile(c *fiber.Ctx) error {
	var body reportProfileBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if body.Name == "" || body.Platform == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name and platform are required",
		})
	}

	req := services.ReportProfileRequest{
		Name:            body.Name,
		Platform:        body.Platform,
		Username:        body.Username,
		Age:             body.Age,
		Location:        body.Location,
		Bio:             body.Bio,
		Interests:       body.Interests,
		FaceDescription: body.FaceDescription,
	}

	if body.PhotoBase64 != "" {
		photo, err := base64.StdEncoding.DecodeString(body.PhotoBase64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "photo_base64 is not valid base64",
			})
		}
		if len(photo) > maxPhotoBytes {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": "photo exceeds the 20MB limit",
			})
		}
		req.Photo = photo
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := h.avatarService.FindOrCreate(ctx, req)
	if err != nil {
		if services.IsDecodeError(err) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "photo could not be decoded as an image",
			})
		}
		log.Printf("❌ [PROFILE-API] Failed to process sighting: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process profile report",
		})
	}

	return c.JSON(fiber.Map{
		"person_id":         result.Person.ID,
		"created":           result.Created,
		"is_existing_match": result.IsExistingMatch,
		"stored_image_ref":  result.StoredImageRef,
		"confidence_score":  result.Person.ConfidenceScore,
		"metrics":           result.Person.Metrics,
	})
}
