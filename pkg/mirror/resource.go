package mirror

// Resource identifies the kind of payload a mirror is being asked to
// serve. A mirror only advertises a subset of these through its
// SupportedResources.
type Resource string

const (
	// ResourceOszFile is a beatmap archive in the current .osz format.
	ResourceOszFile Resource = "OSZ_FILE"
	// ResourceOsz2File is a beatmap archive in the legacy .osz2 format.
	ResourceOsz2File Resource = "OSZ2_FILE"
	// ResourceBackgroundImage is the background image of a single beatmap.
	ResourceBackgroundImage Resource = "BACKGROUND_IMAGE"
	// ResourceCheesegullBeatmap is a single beatmap's legacy metadata shape.
	ResourceCheesegullBeatmap Resource = "CHEESEGULL_BEATMAP"
	// ResourceCheesegullBeatmapset is a beatmapset's legacy metadata shape.
	ResourceCheesegullBeatmapset Resource = "CHEESEGULL_BEATMAPSET"
)

// IsArchive returns whether the resource is a binary archive format
// subject to the ZIP local-file-header validation of §4.5.
func (r Resource) IsArchive() bool {
	return r == ResourceOszFile || r == ResourceOsz2File
}
