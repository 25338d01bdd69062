package api

import (
	"net/http"

	"github.com/punchamoorthee/cardexchange/internal/models"
	"github.com/punchamoorthee/cardexchange/internal/service"
)

func (h *Handler) CreateOfferHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthenticated", "UNAUTHENTICATED")
		return
	}

	var req models.CreateOfferRequest
	if err := decodeBody(r, "create_offer.json", &req); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	offer, err := h.svc.CreateOffer(r.Context(), userID, req.CardID, req.MinRarity)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, models.OfferResponse{Message: "Exchange offer created", Offer: offer})
}

func (h *Handler) ListOpenOffersHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offers, err := h.svc.ListOpenOffers(r.Context(), service.OfferFilter{
		Query:     q.Get("q"),
		MinRarity: q.Get("min_rarity"),
	})
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, offers)
}

func (h *Handler) MyOffersHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthenticated", "UNAUTHENTICATED")
		return
	}

	offers, err := h.svc.MyOffers(r.Context(), userID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, offers)
}

func (h *Handler) CreateRequestHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthenticated", "UNAUTHENTICATED")
		return
	}
	offerID, err := pathID(r, "id")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	var req models.CreateRequestRequest
	if err := decodeBody(r, "create_request.json", &req); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	created, err := h.svc.CreateRequest(r.Context(), userID, offerID, req.OfferedCardID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, models.RequestResponse{Message: "Exchange request created", Request: created})
}

func (h *Handler) AcceptRequestHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthenticated", "UNAUTHENTICATED")
		return
	}
	offerID, err := pathID(r, "offerId")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	requestID, err := pathID(r, "requestId")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	res, err := h.svc.AcceptRequest(r.Context(), userID, offerID, requestID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.AcceptResponse{Message: "Exchange completed", AcceptResult: res})
}

func (h *Handler) CancelOfferHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthenticated", "UNAUTHENTICATED")
		return
	}
	offerID, err := pathID(r, "id")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	res, err := h.svc.CancelOffer(r.Context(), userID, offerID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.CancelResponse{Message: "Offer cancelled", CancelResult: res})
}

func (h *Handler) MyRequestsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthenticated", "UNAUTHENTICATED")
		return
	}

	reqs, err := h.svc.MyRequests(r.Context(), userID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, reqs)
}

func (h *Handler) RequestsForOfferHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthenticated", "UNAUTHENTICATED")
		return
	}
	offerID, err := pathID(r, "offerId")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	reqs, err := h.svc.RequestsForOffer(r.Context(), userID, offerID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, reqs)
}

func (h *Handler) EligibleCardsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthenticated", "UNAUTHENTICATED")
		return
	}
	offerID, err := pathID(r, "offerId")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	cards, err := h.svc.EligibleCards(r.Context(), userID, offerID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cards)
}
