package entry

// TypeFilter restricts the history view to one content type.
type TypeFilter int

const (
	FilterAll TypeFilter = iota
	FilterPlainText
	FilterImage
	FilterFilePath
)

var filterOrder = []TypeFilter{FilterAll, FilterPlainText, FilterImage, FilterFilePath}

// Next advances through All -> PlainText -> Image -> FilePath -> All.
func (f TypeFilter) Next() TypeFilter {
	for i, v := range filterOrder {
		if v == f {
			return filterOrder[(i+1)%len(filterOrder)]
		}
	}
	return FilterAll
}

// Tag is the content type the filter matches; "" matches everything.
func (f TypeFilter) Tag() ContentType {
	switch f {
	case FilterPlainText:
		return PlainText
	case FilterImage:
		return Image
	case FilterFilePath:
		return FilePath
	default:
		return ""
	}
}

// Label is the short name shown in the panel.
func (f TypeFilter) Label() string {
	switch f {
	case FilterPlainText:
		return "Text"
	case FilterImage:
		return "Images"
	case FilterFilePath:
		return "Files"
	default:
		return "All Types"
	}
}

func (f TypeFilter) String() string { return f.Label() }

// Apply returns the entries matching f. FilterAll returns in unchanged.
func (f TypeFilter) Apply(in []Entry) []Entry {
	tag := f.Tag()
	if tag == "" {
		return in
	}
	out := make([]Entry, 0, len(in))
	for _, e := range in {
		if e.ContentType == tag {
			out = append(out, e)
		}
	}
	return out
}
