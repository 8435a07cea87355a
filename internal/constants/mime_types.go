package constants

// MimeTypes maps file extensions to their corresponding MIME types. Used
// when serving exported files and when deciding whether an attachment is
// rendered inline as an image or as a download link.
var MimeTypes = map[string]string{
	// Image formats
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".jfif": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".bmp":  "image/bmp",

	// Video formats
	".mp4": "video/mp4",
	".mov": "video/quicktime",
	".avi": "video/x-msvideo",

	// Document formats
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".txt":  "text/plain",
	".rtf":  "application/rtf",
	".html": "text/html",
	".zip":  "application/zip",

	// Audio formats
	".ogg": "audio/ogg",
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
	".aac": "audio/aac",
	".m4a": "audio/mp4",
}

// DefaultMimeType is the fallback MIME type for unknown file extensions
const DefaultMimeType = "application/octet-stream"

// HostedContentExtensions maps the HTML tag preceding a hosted-content URL
// to the file extension used when the content is persisted locally. A tag
// missing from this table is an unsupported-content error, never a guess.
var HostedContentExtensions = map[string]string{
	"img": ".jpg",
}
