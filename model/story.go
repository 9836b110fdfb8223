package model

// Story mirrors the fields requested from the upstream v3 API.
type Story struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	CreateDate  string   `json:"createDate"`
	ModifyDate  string   `json:"modifyDate"`
	Language    Language `json:"language"`
	User        User     `json:"user"`
	Description string   `json:"description"`
	Cover       string   `json:"cover"`
	Completed   bool     `json:"completed"`
	Tags        []string `json:"tags"`
	Mature      bool     `json:"mature"`
	URL         string   `json:"url"`
	Parts       []Part   `json:"parts"`
	IsPaywalled bool     `json:"isPaywalled"`
}

type Language struct {
	Name string `json:"name"`
}

type User struct {
	Username    string `json:"username"`
	Avatar      string `json:"avatar"`
	Description string `json:"description"`
}

// Part is one chapter reference in upstream order. The position of a part in
// Story.Parts fixes the final spine order of the book.
type Part struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Chapter is a fetched part body plus any images referenced by it.
type Chapter struct {
	ID       int64
	Index    int
	Title    string
	BodyHTML string
	Images   []*ImageAsset

	// Failed marks a chapter whose body could not be fetched; BodyHTML then
	// holds placeholder content and the build still succeeds.
	Failed bool
}

// ImageAsset is a downloaded in-body image. A failed download degrades to a
// placeholder instead of aborting the chapter.
type ImageAsset struct {
	SourceURL   string
	Data        []byte
	ContentType string
	Placeholder bool
}

// StoryContent is one gathered story: metadata plus ordered chapters.
type StoryContent struct {
	Story    *Story
	Chapters []*Chapter
}

// Bundle is everything the assembler needs for one build. Story and part
// targets carry a single story; list targets carry every resolvable story in
// list order.
type Bundle struct {
	Title   string
	ID      string
	Cover   *ImageAsset
	Stories []*StoryContent
	Report  BuildReport
}
