package services

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ImageStoreService persists submitted face photos to local disk and hands
// back a public reference path. Photos are content under the owning person's
// id, so everything a person's reporters uploaded lives in one directory.
type ImageStoreService struct {
	baseDir    string
	publicBase string
}

// NewImageStoreService creates the store rooted at baseDir. publicBase is
// the URL prefix the static file route serves from (e.g. "/files").
func NewImageStoreService(baseDir, publicBase string) *ImageStoreService {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		log.Printf("⚠️  Warning: Could not create upload directory: %v", err)
	}
	return &ImageStoreService{baseDir: baseDir, publicBase: publicBase}
}

// Store writes imageBytes under the person's directory and returns the
// public reference. The write happens before any match decision is
// consumed, so a failed match never loses the uploaded evidence.
func (s *ImageStoreService) Store(imageBytes []byte, personID string) (string, error) {
	dir := filepath.Join(s.baseDir, "persons", personID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create person directory: %w", err)
	}

	name := uuid.New().String() + ".jpg"
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, imageBytes, 0600); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	ref := fmt.Sprintf("%s/persons/%s/%s", s.publicBase, personID, name)
	log.Printf("📸 [IMAGE-STORE] Stored photo for person %s (%d bytes)", personID, len(imageBytes))
	return ref, nil
}

// BaseDir exposes the storage root for the static file route.
func (s *ImageStoreService) BaseDir() string {
	return s.baseDir
}
