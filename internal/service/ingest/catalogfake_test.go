package ingest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/quimera/catalog-ingest/internal/service/catalog"
)

// fakeCatalog is an in-memory stand-in for the catalog API, just faithful
// enough for reconciliation: SKU search, duplicate-size conflicts and
// per-store listing queries behave like the real service.
type fakeCatalog struct {
	mu sync.Mutex

	stores   map[int64]catalog.Store
	products map[int64]catalog.Product
	listings map[int64]catalog.Listing
	sizes    map[int64]catalog.Size

	nextID int64

	// listingFailures makes the next N listing creations return a 500.
	listingFailures int
	// sizeFailures makes the next N size creations return a 500.
	sizeFailures int
	// rejectWrites makes every product creation return a 401, simulating
	// a token the identity provider keeps issuing but the API rejects.
	rejectWrites bool
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		stores:   make(map[int64]catalog.Store),
		products: make(map[int64]catalog.Product),
		listings: make(map[int64]catalog.Listing),
		sizes:    make(map[int64]catalog.Size),
		nextID:   100,
	}
}

func (f *fakeCatalog) addStore(s catalog.Store) catalog.Store {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == 0 {
		f.nextID++
		s.ID = f.nextID
	}
	f.stores[s.ID] = s
	return s
}

func (f *fakeCatalog) addProduct(p catalog.Product) catalog.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == 0 {
		f.nextID++
		p.ID = f.nextID
	}
	f.products[p.ID] = p
	return p
}

func (f *fakeCatalog) addListing(l catalog.Listing) catalog.Listing {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l.ID == 0 {
		f.nextID++
		l.ID = f.nextID
	}
	f.listings[l.ID] = l
	return l
}

func (f *fakeCatalog) addSize(s catalog.Size) catalog.Size {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == 0 {
		f.nextID++
		s.ID = f.nextID
	}
	f.sizes[s.ID] = s
	return s
}

func (f *fakeCatalog) productBySKU(sku string) (catalog.Product, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.SKU == sku {
			return p, true
		}
	}
	return catalog.Product{}, false
}

func (f *fakeCatalog) listingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listings)
}

func (f *fakeCatalog) sizesOfListing(listingID int64) []catalog.Size {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []catalog.Size
	for _, s := range f.sizes {
		if s.ZapatillaTiendaID == listingID {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeCatalog) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"fake-token","expires_in":3600}`)
	})

	mux.HandleFunc("GET /tiendas", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		out := make([]catalog.Store, 0, len(f.stores))
		for _, s := range f.stores {
			out = append(out, s)
		}
		respond(w, out)
	})

	mux.HandleFunc("GET /tiendas/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		s, ok := f.stores[pathID(r)]
		if !ok {
			http.Error(w, `{"message":"tienda no encontrada"}`, http.StatusNotFound)
			return
		}
		respond(w, s)
	})

	mux.HandleFunc("GET /zapatillas", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		sku := r.URL.Query().Get("sku")
		out := make([]catalog.Product, 0)
		for _, p := range f.products {
			if sku == "" || p.SKU == sku {
				out = append(out, p)
			}
		}
		respond(w, out)
	})

	mux.HandleFunc("GET /zapatillas/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		p, ok := f.products[pathID(r)]
		if !ok {
			http.Error(w, `{"message":"zapatilla no encontrada"}`, http.StatusNotFound)
			return
		}
		respond(w, p)
	})

	mux.HandleFunc("POST /zapatillas", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		rejected := f.rejectWrites
		f.mu.Unlock()
		if rejected {
			http.Error(w, `{"message":"token invalido"}`, http.StatusUnauthorized)
			return
		}

		var payload catalog.NewProduct
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		created := f.addProduct(catalog.Product{
			Marca: payload.Marca, Modelo: payload.Modelo, SKU: payload.SKU,
			Imagen: payload.Imagen, Descripcion: payload.Descripcion, Activa: payload.Activa,
		})
		w.WriteHeader(http.StatusCreated)
		respond(w, created)
	})

	mux.HandleFunc("PATCH /zapatillas/{id}", func(w http.ResponseWriter, r *http.Request) {
		var patch catalog.ProductPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		p, ok := f.products[pathID(r)]
		if !ok {
			http.Error(w, `{"message":"zapatilla no encontrada"}`, http.StatusNotFound)
			return
		}
		if patch.Activa != nil {
			p.Activa = *patch.Activa
		}
		if patch.Imagen != nil {
			p.Imagen = *patch.Imagen
		}
		if patch.Descripcion != nil {
			p.Descripcion = *patch.Descripcion
		}
		f.products[p.ID] = p
		respond(w, p)
	})

	mux.HandleFunc("POST /zapatillas-tienda", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		if f.listingFailures > 0 {
			f.listingFailures--
			f.mu.Unlock()
			http.Error(w, `{"message":"error interno"}`, http.StatusInternalServerError)
			return
		}
		f.mu.Unlock()

		var payload catalog.NewListing
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		created := f.addListing(catalog.Listing{
			ZapatillaID: payload.ZapatillaID, TiendaID: payload.TiendaID,
			Precio: payload.Precio, URLProducto: payload.URLProducto,
			ModeloTienda: payload.ModeloTienda, ScrapeRunID: payload.ScrapeRunID,
			Disponible: payload.Disponible,
		})
		w.WriteHeader(http.StatusCreated)
		respond(w, created)
	})

	mux.HandleFunc("GET /zapatillas-tienda", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		storeID, _ := strconv.ParseInt(r.URL.Query().Get("tienda_id"), 10, 64)
		out := make([]catalog.Listing, 0)
		for _, l := range f.listings {
			if l.TiendaID == storeID {
				out = append(out, l)
			}
		}
		respond(w, out)
	})

	mux.HandleFunc("DELETE /zapatillas-tienda/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := pathID(r)
		if _, ok := f.listings[id]; !ok {
			http.Error(w, `{"message":"no encontrada"}`, http.StatusNotFound)
			return
		}
		// no cascade: the real API leaves size rows alone on listing
		// deletes, callers must remove them first
		delete(f.listings, id)
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("GET /tallas", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		listingID, _ := strconv.ParseInt(r.URL.Query().Get("zapatilla_tienda_id"), 10, 64)
		label := r.URL.Query().Get("talla")
		out := make([]catalog.Size, 0)
		for _, s := range f.sizes {
			if s.ZapatillaTiendaID == listingID && (label == "" || s.Talla == label) {
				out = append(out, s)
			}
		}
		respond(w, out)
	})

	mux.HandleFunc("POST /tallas", func(w http.ResponseWriter, r *http.Request) {
		var payload catalog.NewSize
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.sizeFailures > 0 {
			f.sizeFailures--
			http.Error(w, `{"message":"error interno"}`, http.StatusInternalServerError)
			return
		}
		for _, s := range f.sizes {
			if s.ZapatillaTiendaID == payload.ZapatillaTiendaID && s.Talla == payload.Talla {
				http.Error(w, `{"message":"talla duplicada"}`, http.StatusConflict)
				return
			}
		}
		f.nextID++
		created := catalog.Size{
			ID: f.nextID, ZapatillaTiendaID: payload.ZapatillaTiendaID,
			Talla: payload.Talla, Disponible: payload.Disponible,
		}
		f.sizes[created.ID] = created
		w.WriteHeader(http.StatusCreated)
		respond(w, created)
	})

	mux.HandleFunc("DELETE /tallas/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := pathID(r)
		if _, ok := f.sizes[id]; !ok {
			http.Error(w, `{"message":"no encontrada"}`, http.StatusNotFound)
			return
		}
		delete(f.sizes, id)
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("PATCH /tallas/{id}", func(w http.ResponseWriter, r *http.Request) {
		var patch struct {
			Disponible *bool `json:"disponible"`
		}
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		s, ok := f.sizes[pathID(r)]
		if !ok {
			http.Error(w, `{"message":"no encontrada"}`, http.StatusNotFound)
			return
		}
		if patch.Disponible != nil {
			s.Disponible = *patch.Disponible
		}
		f.sizes[s.ID] = s
		respond(w, s)
	})

	return mux
}

func respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id
}

// newFakeClient starts the fake catalog and returns a real client wired to
// it, plus the fake for seeding and inspection.
func newFakeClient(t *testing.T) (*catalog.Client, *fakeCatalog) {
	t.Helper()

	fake := newFakeCatalog()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	tokens := catalog.NewTokenSource(catalog.AuthConfig{
		TokenURL:     server.URL + "/oauth/token",
		ClientID:     "test",
		ClientSecret: "test",
	}, server.Client())

	return catalog.NewClient(server.URL, tokens, server.Client()), fake
}
