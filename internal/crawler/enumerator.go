package crawler

import "iter"

// Pages yields the listing pages still to collect. Collection resumes at the
// page boundary nearest the number of links already held, so a partially
// collected page is fetched again in full.
func Pages(run RunConfig, cp Checkpoint) iter.Seq[int] {
	first := len(cp.Links)/run.PageSize + 1
	if first < run.StartPage {
		first = run.StartPage
	}
	return func(yield func(int) bool) {
		for page := first; page <= run.EndPage; page++ {
			if !yield(page) {
				return
			}
		}
	}
}
