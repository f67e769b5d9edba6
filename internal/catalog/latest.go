package catalog

import (
	"context"
	"sort"

	"github.com/sourcegraph/conc/pool"

	"github.com/JustinTDCT/CineGate/internal/models"
	"github.com/JustinTDCT/CineGate/internal/pagination"
)

// GetLatest pages a single createdAt-descending feed over films and series.
//
// Each side is read newest-first up to skip+2*pageSize documents and the
// union is re-sorted in process. The top skip+pageSize of the union always
// lies within the top skip+pageSize of each side, so the window is exact at
// any depth; LatestMaxPage bounds the read size.
func (s *Service) GetLatest(ctx context.Context, page int) (PagedResponse[models.Content], error) {
	p := pagination.NewPage(page, s.pageSize)
	key := cacheKey(TypeMixed, p.Number, p.Size)
	return cached(ctx, s, TypeMixed, key, func() (PagedResponse[models.Content], error) {
		if p.Number > LatestMaxPage {
			meta := pagination.Paginate(p.Number, 0, p.Size)
			return ok([]models.Content{}, TypeMixed, meta), nil
		}
		fetch := p.Skip + 2*p.Size

		var films, series []models.Content
		var filmCount, seriesCount int
		wg := pool.New().WithErrors().WithContext(ctx)
		wg.Go(func(ctx context.Context) (err error) {
			films, err = s.repo.Latest(ctx, models.KindFilm, fetch)
			return err
		})
		wg.Go(func(ctx context.Context) (err error) {
			series, err = s.repo.Latest(ctx, models.KindSeries, fetch)
			return err
		})
		wg.Go(func(ctx context.Context) (err error) {
			filmCount, err = s.repo.Count(ctx, models.KindFilm, nil)
			return err
		})
		wg.Go(func(ctx context.Context) (err error) {
			seriesCount, err = s.repo.Count(ctx, models.KindSeries, nil)
			return err
		})
		if err := wg.Wait(); err != nil {
			return failed[models.Content](TypeMixed, p.Number, p.Size, err), s.storeError(TypeMixed, err)
		}

		total := filmCount + seriesCount
		if ceiling := LatestMaxPage * p.Size; total > ceiling {
			total = ceiling
		}
		docs := mergeWindow(films, series, p.Skip, p.Size)
		return ok(docs, TypeMixed, pagination.Paginate(p.Number, total, p.Size)), nil
	})
}

// mergeWindow merges two newest-first lists and returns [skip, skip+size).
func mergeWindow(a, b []models.Content, skip, size int) []models.Content {
	merged := make([]models.Content, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].CreatedAt.After(merged[j].CreatedAt)
		}
		return merged[i].ID.Hex() > merged[j].ID.Hex()
	})
	if skip >= len(merged) {
		return []models.Content{}
	}
	end := skip + size
	if end > len(merged) {
		end = len(merged)
	}
	return merged[skip:end]
}
