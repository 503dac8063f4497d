package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/phturb/campaign-codex-backend-go/codex"
	"github.com/phturb/campaign-codex-backend-go/model"
	"github.com/phturb/campaign-codex-backend-go/model/wikiapi"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(fmt.Sprintf("[writeJSON] - unable to encode response : %s", err.Error()))
	}
}

func statusFor(kind codex.ErrorKind) int {
	switch kind {
	case codex.ErrorValidation:
		return http.StatusBadRequest
	case codex.ErrorNotFound:
		return http.StatusNotFound
	case codex.ErrorDuplicate, codex.ErrorConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respond writes data wrapped in a successful result, or the result describing err.
func respond(w http.ResponseWriter, okStatus int, data any, err error) {
	if err != nil {
		res := codex.ResultFromError(err)
		writeJSON(w, statusFor(res.ErrorType), res)
		return
	}
	writeJSON(w, okStatus, codex.Ok(data))
}

func badRequest(field, format string, args ...any) error {
	return &codex.Error{
		Kind:    codex.ErrorValidation,
		Message: "invalid request",
		Fields:  map[string]string{field: fmt.Sprintf(format, args...)},
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("body", "request body is not valid JSON")
	}
	return nil
}

func pathID(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil {
		return 0, badRequest(name, "%s must be a positive integer", name)
	}
	return uint(id), nil
}

func queryUint(r *http.Request, name string) (*uint, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return nil, badRequest(name, "%s must be a positive integer", name)
	}
	u := uint(n)
	return &u, nil
}

// queryRef reads the entityType and entityId query parameters.
func queryRef(r *http.Request) (model.EntityRef, error) {
	kind, err := model.EntityKindFromString(r.URL.Query().Get("entityType"))
	if err != nil {
		return model.EntityRef{}, badRequest("entityType", "%s", err.Error())
	}
	id, err := queryUint(r, "entityId")
	if err != nil {
		return model.EntityRef{}, err
	}
	if id == nil {
		return model.EntityRef{}, badRequest("entityId", "entityId is required")
	}
	return model.EntityRef{Kind: kind, ID: *id}, nil
}

func registerCRUD[T any](api *mux.Router, prefix string, store codex.EntityStore[T]) {
	api.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		campaignID, err := queryUint(r, "campaignId")
		if err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		adventureID, err := queryUint(r, "adventureId")
		if err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		list, err := store.List(r.Context(), codex.ListFilter{CampaignID: campaignID, AdventureID: adventureID})
		respond(w, http.StatusOK, list, err)
	}).Methods(http.MethodGet)

	api.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		var v T
		if err := decode(r, &v); err != nil {
			respond(w, http.StatusCreated, nil, err)
			return
		}
		created, err := store.Create(r.Context(), &v)
		respond(w, http.StatusCreated, created, err)
	}).Methods(http.MethodPost)

	api.HandleFunc(prefix+"/{id:[0-9]+}", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		v, err := store.Get(r.Context(), id)
		respond(w, http.StatusOK, v, err)
	}).Methods(http.MethodGet)

	api.HandleFunc(prefix+"/{id:[0-9]+}", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		var v T
		if err := decode(r, &v); err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		updated, err := store.Update(r.Context(), id, &v)
		respond(w, http.StatusOK, updated, err)
	}).Methods(http.MethodPut)

	api.HandleFunc(prefix+"/{id:[0-9]+}", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err == nil {
			err = store.Delete(r.Context(), id)
		}
		respond(w, http.StatusOK, nil, err)
	}).Methods(http.MethodDelete)
}

func (s *server) registerViews(api *mux.Router) {
	api.HandleFunc("/campaigns/{id:[0-9]+}/overview", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		v, err := s.svc.Views.CampaignOverview(r.Context(), id)
		respond(w, http.StatusOK, v, err)
	}).Methods(http.MethodGet)

	api.HandleFunc("/campaigns/{id:[0-9]+}/export", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		out, err := s.svc.Exporter.ExportCampaign(r.Context(), id)
		respond(w, http.StatusOK, out, err)
	}).Methods(http.MethodGet)

	api.HandleFunc("/adventures/by-slug/{slug}", func(w http.ResponseWriter, r *http.Request) {
		v, err := s.svc.Views.AdventureView(r.Context(), mux.Vars(r)["slug"])
		respond(w, http.StatusOK, v, err)
	}).Methods(http.MethodGet)

	api.HandleFunc("/{collection:characters|locations|quests}/{id:[0-9]+}/view", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		var v any
		switch mux.Vars(r)["collection"] {
		case "characters":
			v, err = s.svc.Views.CharacterView(r.Context(), id)
		case "locations":
			v, err = s.svc.Views.LocationView(r.Context(), id)
		default:
			v, err = s.svc.Views.QuestView(r.Context(), id)
		}
		respond(w, http.StatusOK, v, err)
	}).Methods(http.MethodGet)
}

func (s *server) registerRelations(api *mux.Router) {
	api.HandleFunc("/relations", func(w http.ResponseWriter, r *http.Request) {
		var in codex.RelationInput
		if err := decode(r, &in); err != nil {
			respond(w, http.StatusCreated, nil, err)
			return
		}
		rel, err := s.svc.Relations.CreateRelation(r.Context(), in)
		respond(w, http.StatusCreated, rel, err)
	}).Methods(http.MethodPost)

	api.HandleFunc("/relations", func(w http.ResponseWriter, r *http.Request) {
		ref, err := queryRef(r)
		if err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		campaignID, err := queryUint(r, "campaignId")
		if err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		rels, err := s.svc.Relations.ListRelationsForEntity(r.Context(), ref, campaignID)
		respond(w, http.StatusOK, rels, err)
	}).Methods(http.MethodGet)

	api.HandleFunc("/relations/{id:[0-9]+}", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		rel, err := s.svc.Relations.GetRelation(r.Context(), id)
		respond(w, http.StatusOK, rel, err)
	}).Methods(http.MethodGet)

	api.HandleFunc("/relations/{id:[0-9]+}", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		var in codex.RelationInput
		if err := decode(r, &in); err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		rel, err := s.svc.Relations.UpdateRelation(r.Context(), id, in)
		respond(w, http.StatusOK, rel, err)
	}).Methods(http.MethodPut)

	api.HandleFunc("/relations/{id:[0-9]+}", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err == nil {
			err = s.svc.Relations.DeleteRelation(r.Context(), id)
		}
		respond(w, http.StatusOK, nil, err)
	}).Methods(http.MethodDelete)
}

func (s *server) registerDiary(api *mux.Router) {
	const owner = "/{collection:characters|locations|quests}/{id:[0-9]+}/diary"
	kindOf := func(r *http.Request) model.EntityKind {
		return kindsByCollection[mux.Vars(r)["collection"]]
	}

	api.HandleFunc(owner, func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		entries, err := s.svc.Diary.ListEntries(r.Context(), kindOf(r), id)
		respond(w, http.StatusOK, entries, err)
	}).Methods(http.MethodGet)

	api.HandleFunc(owner, func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respond(w, http.StatusCreated, nil, err)
			return
		}
		var in codex.DiaryInput
		if err := decode(r, &in); err != nil {
			respond(w, http.StatusCreated, nil, err)
			return
		}
		e, err := s.svc.Diary.CreateEntry(r.Context(), kindOf(r), id, in)
		respond(w, http.StatusCreated, e, err)
	}).Methods(http.MethodPost)

	api.HandleFunc(owner+"/{entryId:[0-9]+}", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		entryID, err := pathID(r, "entryId")
		if err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		var in codex.DiaryInput
		if err := decode(r, &in); err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		e, err := s.svc.Diary.UpdateEntry(r.Context(), kindOf(r), entryID, id, in)
		respond(w, http.StatusOK, e, err)
	}).Methods(http.MethodPut)

	api.HandleFunc(owner+"/{entryId:[0-9]+}", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		entryID, err := pathID(r, "entryId")
		if err == nil {
			err = s.svc.Diary.DeleteEntry(r.Context(), kindOf(r), entryID, id)
		}
		respond(w, http.StatusOK, nil, err)
	}).Methods(http.MethodDelete)
}

func (s *server) registerWiki(api *mux.Router) {
	api.HandleFunc("/wiki/articles", func(w http.ResponseWriter, r *http.Request) {
		var in codex.ArticleInput
		if err := decode(r, &in); err != nil {
			respond(w, http.StatusCreated, nil, err)
			return
		}
		a, err := s.svc.Wiki.ImportArticle(r.Context(), in)
		respond(w, http.StatusCreated, a, err)
	}).Methods(http.MethodPost)

	api.HandleFunc("/wiki/articles", func(w http.ResponseWriter, r *http.Request) {
		var ct wikiapi.ContentType
		if v := r.URL.Query().Get("contentType"); v != "" {
			parsed, err := wikiapi.ContentTypeFromString(v)
			if err != nil {
				respond(w, http.StatusOK, nil, badRequest("contentType", "%s", err.Error()))
				return
			}
			ct = parsed
		}
		list, err := s.svc.Wiki.ListArticles(r.Context(), ct)
		respond(w, http.StatusOK, list, err)
	}).Methods(http.MethodGet)

	api.HandleFunc("/wiki/articles/{id:[0-9]+}", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		a, err := s.svc.Wiki.GetArticle(r.Context(), id)
		respond(w, http.StatusOK, a, err)
	}).Methods(http.MethodGet)

	api.HandleFunc("/wiki/articles/{id:[0-9]+}", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err == nil {
			err = s.svc.Wiki.DeleteArticle(r.Context(), id)
		}
		respond(w, http.StatusOK, nil, err)
	}).Methods(http.MethodDelete)

	api.HandleFunc("/wiki/links", func(w http.ResponseWriter, r *http.Request) {
		var in codex.LinkInput
		if err := decode(r, &in); err != nil {
			respond(w, http.StatusCreated, nil, err)
			return
		}
		l, err := s.svc.Wiki.LinkArticle(r.Context(), in)
		respond(w, http.StatusCreated, l, err)
	}).Methods(http.MethodPost)

	api.HandleFunc("/wiki/links", func(w http.ResponseWriter, r *http.Request) {
		ref, err := queryRef(r)
		if err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		b, err := s.svc.Wiki.ListLinkedArticles(r.Context(), ref)
		respond(w, http.StatusOK, b, err)
	}).Methods(http.MethodGet)

	api.HandleFunc("/wiki/links", func(w http.ResponseWriter, r *http.Request) {
		ref, err := queryRef(r)
		if err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		articleID, err := queryUint(r, "wikiArticleId")
		if err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		if articleID == nil {
			respond(w, http.StatusOK, nil, badRequest("wikiArticleId", "wikiArticleId is required"))
			return
		}
		var ct wikiapi.ContentType
		if v := r.URL.Query().Get("contentType"); v != "" {
			if ct, err = wikiapi.ContentTypeFromString(v); err != nil {
				respond(w, http.StatusOK, nil, badRequest("contentType", "%s", err.Error()))
				return
			}
		}
		err = s.svc.Wiki.RemoveWikiItem(r.Context(), *articleID, ct, ref)
		respond(w, http.StatusOK, nil, err)
	}).Methods(http.MethodDelete)
}

func (s *server) registerAssignments(api *mux.Router) {
	api.HandleFunc("/magic-items/{id:[0-9]+}/assignments", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respond(w, http.StatusCreated, nil, err)
			return
		}
		var in codex.AssignInput
		if err := decode(r, &in); err != nil {
			respond(w, http.StatusCreated, nil, err)
			return
		}
		in.MagicItemID = id
		a, err := s.svc.Assignments.Assign(r.Context(), in)
		respond(w, http.StatusCreated, a, err)
	}).Methods(http.MethodPost)

	api.HandleFunc("/magic-items/{id:[0-9]+}/assignments", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		list, err := s.svc.Assignments.ListForItem(r.Context(), id)
		respond(w, http.StatusOK, list, err)
	}).Methods(http.MethodGet)

	api.HandleFunc("/assignments", func(w http.ResponseWriter, r *http.Request) {
		ref, err := queryRef(r)
		if err != nil {
			respond(w, http.StatusOK, nil, err)
			return
		}
		list, err := s.svc.Assignments.ListForHolder(r.Context(), ref)
		respond(w, http.StatusOK, list, err)
	}).Methods(http.MethodGet)

	api.HandleFunc("/assignments/{id:[0-9]+}", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err == nil {
			err = s.svc.Assignments.Unassign(r.Context(), id)
		}
		respond(w, http.StatusOK, nil, err)
	}).Methods(http.MethodDelete)
}
