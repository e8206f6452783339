package model

// PlanChapters flattens a catalog's volumes into the ordered list of
// chapter IDs to download for book, per the planning rule: catalog order,
// restricted to [start, end] (either endpoint unbounded if absent or not
// found in the catalog), minus ignore, minus empty chapter IDs.
func PlanChapters(volumes []Volume, book BookConfig) []ChapterID {
	all := make([]ChapterID, 0)
	for _, v := range volumes {
		for _, ch := range v.Chapters {
			if ch.ChapterID == "" {
				continue
			}
			all = append(all, ch.ChapterID)
		}
	}

	startIdx := 0
	if book.StartID != "" {
		if i := indexOf(all, book.StartID); i >= 0 {
			startIdx = i
		}
	}
	endIdx := len(all) - 1
	if book.EndID != "" {
		if i := indexOf(all, book.EndID); i >= 0 {
			endIdx = i
		}
	}
	if startIdx > endIdx {
		return nil
	}

	plan := make([]ChapterID, 0, endIdx-startIdx+1)
	for _, cid := range all[startIdx : endIdx+1] {
		if _, ignored := book.IgnoreIDs[cid]; ignored {
			continue
		}
		plan = append(plan, cid)
	}
	return plan
}

func indexOf(ids []ChapterID, target ChapterID) int {
	for i, id := range ids {
		if id == target {
			return i
		}
	}
	return -1
}
