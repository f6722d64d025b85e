package media

import "net/url"

const uploadingSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="120" height="40"><rect width="120" height="40" fill="#e8e8e8"/><text x="60" y="25" font-size="12" text-anchor="middle" fill="#666">uploading...</text></svg>`

// UploadingFiller is the inline image shown in place of a reference
// whose upload has not finished. Rendering it never touches the network.
var UploadingFiller = "data:image/svg+xml," + url.PathEscape(uploadingSVG)

// Resolve maps one image token to a renderable URL. Pure and
// synchronous; called by the renderer for every displayed reference.
//
// Full URLs pass through verbatim. Placeholders render the uploading
// filler. Filenames resolve through the cache when a fresh entry
// exists; otherwise the raw token is returned and renders as a broken
// image until the pending batch refresh completes.
func Resolve(token string, cache *Cache) string {
	switch Classify(token).Kind {
	case KindFullURL:
		return token
	case KindPlaceholder:
		return UploadingFiller
	case KindFilename:
		if cache != nil {
			if entry, ok := cache.Get(token); ok {
				return entry.URL
			}
		}
		return token
	default:
		return token
	}
}
