package httpapi

import (
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/DaDevFox/task-systems/feeding-core/internal/domain"
	"github.com/DaDevFox/task-systems/feeding-core/internal/service"
)

type putAnimalRequest struct {
	Name        string `json:"name"`
	Species     string `json:"species"`
	DateOfBirth string `json:"date_of_birth"` // YYYY-MM-DD, optional
}

type recordFeedingRequest struct {
	Date string `json:"date"`
}

type reminderResponse struct {
	Reminder *domain.FeedingReminder `json:"reminder"`
}

type addStockRequest struct {
	FoodType    string           `json:"food_type"`
	FoodSize    string           `json:"food_size"`
	Quantity    int              `json:"quantity"`
	CostPerUnit *decimal.Decimal `json:"cost_per_unit"`
	Supplier    string           `json:"supplier"`
	ExpiryDate  string           `json:"expiry_date"`
	Notes       string           `json:"notes"`
}

type debitRequest struct {
	Quantity       int    `json:"quantity"`
	FeedingEventID string `json:"feeding_event_id"`
}

type adjustRequest struct {
	Delta int    `json:"delta"`
	Notes string `json:"notes"`
}

type receiptRequest struct {
	Text string `json:"text"`
}

func animalID(r *http.Request) string {
	return pathParam(r, "animalID")
}

func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func skuFromPath(r *http.Request) domain.SKUKey {
	return domain.NewSKUKey(pathParam(r, "foodType"), pathParam(r, "foodSize"))
}

func optionalDate(field, raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return nil, domain.NewValidationError(field, "must be YYYY-MM-DD")
	}
	return &d, nil
}

func (s *server) putAnimal(w http.ResponseWriter, r *http.Request) {
	var req putAnimalRequest
	if !decode(w, r, &req) {
		return
	}
	dob, err := optionalDate("date_of_birth", req.DateOfBirth)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	animal, err := s.feeding.PutAnimal(r.Context(), &domain.Animal{
		ID:          animalID(r),
		Name:        req.Name,
		Species:     req.Species,
		DateOfBirth: dob,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, animal)
}

func (s *server) predictNextFeeding(w http.ResponseWriter, r *http.Request) {
	p, err := s.feeding.PredictNextFeeding(r.Context(), animalID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) getReminder(w http.ResponseWriter, r *http.Request) {
	reminder, err := s.feeding.GetReminder(r.Context(), animalID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reminder)
}

func (s *server) setReminder(w http.ResponseWriter, r *http.Request) {
	var req service.SetReminderRequest
	if !decode(w, r, &req) {
		return
	}
	reminder, err := s.feeding.SetReminder(r.Context(), animalID(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reminder)
}

func (s *server) updateReminder(w http.ResponseWriter, r *http.Request) {
	var patch service.ReminderPatch
	if !decode(w, r, &patch) {
		return
	}
	reminder, err := s.feeding.UpdateReminder(r.Context(), animalID(r), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reminder)
}

func (s *server) deactivateReminder(w http.ResponseWriter, r *http.Request) {
	if err := s.feeding.Deactivate(r.Context(), animalID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) recordFeeding(w http.ResponseWriter, r *http.Request) {
	var req recordFeedingRequest
	if !decode(w, r, &req) {
		return
	}
	reminder, err := s.feeding.RecordFeeding(r.Context(), animalID(r), req.Date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reminderResponse{Reminder: reminder})
}

func (s *server) logFeeding(w http.ResponseWriter, r *http.Request) {
	var req service.LogFeedingRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := s.feeding.LogFeeding(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *server) getDue(w http.ResponseWriter, r *http.Request) {
	daysAhead, err := queryInt(r, "days_ahead", 1)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.feeding.GetDue(r.Context(), s.now(), daysAhead)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *server) runCheck(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "scheduler disabled"})
		return
	}
	result, err := s.checker.RunScheduledCheck(r.Context(), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) listStock(w http.ResponseWriter, r *http.Request) {
	skus, err := s.inventory.ListStock(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if skus == nil {
		skus = []*domain.InventorySKU{}
	}
	writeJSON(w, http.StatusOK, skus)
}

func (s *server) getSKU(w http.ResponseWriter, r *http.Request) {
	sku, err := s.inventory.GetSKU(r.Context(), skuFromPath(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sku)
}

func (s *server) addStock(w http.ResponseWriter, r *http.Request) {
	var req addStockRequest
	if !decode(w, r, &req) {
		return
	}
	expiry, err := optionalDate("expiry_date", req.ExpiryDate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	movement, err := s.inventory.AddStock(r.Context(), domain.LineItem{
		FoodType:    req.FoodType,
		FoodSize:    req.FoodSize,
		Quantity:    req.Quantity,
		CostPerUnit: req.CostPerUnit,
		Supplier:    req.Supplier,
		ExpiryDate:  expiry,
	}, req.Notes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, movement)
}

// importReceipt accepts the receipt as text/plain or as {"text": "..."}.
func (s *server) importReceipt(w http.ResponseWriter, r *http.Request) {
	var text string
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req receiptRequest
		if !decode(w, r, &req) {
			return
		}
		text = req.Text
	} else {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			badRequest(w, "unreadable body")
			return
		}
		text = string(body)
	}

	result, err := s.inventory.ImportReceipt(r.Context(), text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *server) debit(w http.ResponseWriter, r *http.Request) {
	var req debitRequest
	if !decode(w, r, &req) {
		return
	}
	movement, err := s.inventory.Debit(r.Context(), skuFromPath(r), req.Quantity, req.FeedingEventID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, movement)
}

func (s *server) adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if !decode(w, r, &req) {
		return
	}
	movement, err := s.inventory.Adjust(r.Context(), skuFromPath(r), req.Delta, req.Notes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, movement)
}

func (s *server) listTransactions(w http.ResponseWriter, r *http.Request) {
	since, err := optionalDate("since", r.URL.Query().Get("since"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var from time.Time
	if since != nil {
		from = *since
	}

	txns, err := s.inventory.ListTransactions(r.Context(), skuFromPath(r), from)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if txns == nil {
		txns = []*domain.InventoryTransaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}

func (s *server) getForecast(w http.ResponseWriter, r *http.Request) {
	lookback, err := queryInt(r, "lookback_days", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if lookback < 0 {
		s.writeError(w, r, domain.NewValidationError("lookback_days", "cannot be negative"))
		return
	}

	var key *domain.SKUKey
	q := r.URL.Query()
	if q.Get("food_type") != "" || q.Get("food_size") != "" {
		k := domain.NewSKUKey(q.Get("food_type"), q.Get("food_size"))
		if err := k.Validate(); err != nil {
			s.writeError(w, r, err)
			return
		}
		key = &k
	}

	forecasts, err := s.inventory.GetForecast(r.Context(), key, lookback, s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, forecasts)
}

func (s *server) getShoppingList(w http.ResponseWriter, r *http.Request) {
	horizon, err := queryInt(r, "horizon_days", s.horizonDays)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.inventory.GetShoppingList(r.Context(), horizon, s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
