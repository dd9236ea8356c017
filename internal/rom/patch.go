package rom

// SaveTypeDetector finds the save library signature of an image.
type SaveTypeDetector interface {
	// FindSignature returns the save type of the image or nil if the image
	// does not need a save patch.
	FindSignature(img *Image) SaveType
}

// SaveType patches the save access of an image to use the cartridge SRAM.
type SaveType interface {
	// Patch modifies the image in place and returns whether it succeeded.
	Patch(img *Image) bool
}

// WaitstatePatcher adjusts the memory timing setup of an image, best effort.
type WaitstatePatcher interface {
	Apply(img *Image)
}
