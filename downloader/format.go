package downloader

// PostprocessorKind names a transformation applied after the raw transfer
type PostprocessorKind string

const (
	PostprocessorExtractAudio     PostprocessorKind = "extract-audio"
	PostprocessorConvertContainer PostprocessorKind = "convert-container"
	PostprocessorAttachMetadata   PostprocessorKind = "attach-metadata"
	PostprocessorEmbedThumbnail   PostprocessorKind = "embed-thumbnail"
)

// PostprocessorSpec is a declarative postprocessing step
type PostprocessorSpec struct {
	Kind   PostprocessorKind `json:"kind"`
	Params map[string]string `json:"params,omitempty"`
}

// FormatPlan is the transfer format selector plus its postprocessing chain
type FormatPlan struct {
	FormatSpec     string
	Postprocessors []PostprocessorSpec
	MergeFormat    string
}

const (
	audioFormatSpec = "bestaudio/best"
	videoFormatSpec = "bestvideo+bestaudio/best"

	audioCodec     = "mp3"
	audioQuality   = "192"
	videoContainer = "mp4"
)

// BuildFormatPlan derives the plan for a platform and media type. Bandcamp
// always yields the audio chain.
func BuildFormatPlan(platform Platform, mediaType MediaType) FormatPlan {
	if platform == PlatformBandcamp || mediaType == MediaAudio {
		return FormatPlan{
			FormatSpec: audioFormatSpec,
			Postprocessors: []PostprocessorSpec{
				{Kind: PostprocessorExtractAudio, Params: map[string]string{"codec": audioCodec, "quality": audioQuality}},
				{Kind: PostprocessorAttachMetadata},
				{Kind: PostprocessorEmbedThumbnail},
			},
		}
	}
	return FormatPlan{
		FormatSpec: videoFormatSpec,
		Postprocessors: []PostprocessorSpec{
			{Kind: PostprocessorConvertContainer, Params: map[string]string{"format": videoContainer}},
			{Kind: PostprocessorAttachMetadata},
			{Kind: PostprocessorEmbedThumbnail},
		},
		MergeFormat: videoContainer,
	}
}
