package cdx

// Select narrows the catalog according to sel. The result is always a
// subsequence of catalog in its original order; an empty result is not an error.
//
// SelectLatest takes the first catalog entry. The index publishes newest
// crawls first, but nothing here checks that against the crawl dates.
func Select(catalog []Crawl, sel Selection) []Crawl {
	switch sel.Mode() {
	case SelectLatest:
		if len(catalog) == 0 {
			return []Crawl{}
		}
		return []Crawl{catalog[0]}
	case SelectByIDs:
		out := make([]Crawl, 0, len(sel.ids))
		for _, c := range catalog {
			if sel.Contains(c.ID) {
				out = append(out, c)
			}
		}
		return out
	default:
		return append([]Crawl(nil), catalog...)
	}
}
