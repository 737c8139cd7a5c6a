// Package catalog is the typed client for the remote sneaker catalog API.
// Wire names follow the API's Spanish schema (tiendas, zapatillas,
// zapatillas-tienda, tallas).
package catalog

// Store is a scrapeable shop registered in the catalog.
type Store struct {
	ID     int64  `json:"id"`
	Nombre string `json:"nombre"`
	URL    string `json:"url"`
	Activa bool   `json:"activa"`
}

// Product is a sneaker model identified by its deterministic SKU.
type Product struct {
	ID          int64  `json:"id"`
	Marca       string `json:"marca"`
	Modelo      string `json:"modelo"`
	SKU         string `json:"sku"`
	Imagen      string `json:"imagen,omitempty"`
	Descripcion string `json:"descripcion,omitempty"`
	Activa      bool   `json:"activa"`
}

// NewProduct is the creation payload for a product.
type NewProduct struct {
	Marca       string `json:"marca"`
	Modelo      string `json:"modelo"`
	SKU         string `json:"sku"`
	Imagen      string `json:"imagen,omitempty"`
	Descripcion string `json:"descripcion,omitempty"`
	Activa      bool   `json:"activa"`
}

// ProductPatch is a partial product update. Nil fields are left untouched.
type ProductPatch struct {
	Activa      *bool   `json:"activa,omitempty"`
	Imagen      *string `json:"imagen,omitempty"`
	Descripcion *string `json:"descripcion,omitempty"`
}

// IsEmpty reports whether the patch would change nothing.
func (p ProductPatch) IsEmpty() bool {
	return p.Activa == nil && p.Imagen == nil && p.Descripcion == nil
}

// Listing ties a product to a store with the price and URL seen during a
// scrape run. ScrapeRunID records which run produced it; stale listings are
// identified by comparing it with the latest run.
type Listing struct {
	ID           int64   `json:"id"`
	ZapatillaID  int64   `json:"zapatilla_id"`
	TiendaID     int64   `json:"tienda_id"`
	Precio       float64 `json:"precio"`
	URLProducto  string  `json:"url_producto"`
	ModeloTienda string  `json:"modelo_tienda,omitempty"`
	ScrapeRunID  string  `json:"scrape_run_id,omitempty"`
	Disponible   bool    `json:"disponible"`
}

// NewListing is the creation payload for a listing.
type NewListing struct {
	ZapatillaID  int64   `json:"zapatilla_id"`
	TiendaID     int64   `json:"tienda_id"`
	Precio       float64 `json:"precio"`
	URLProducto  string  `json:"url_producto"`
	ModeloTienda string  `json:"modelo_tienda,omitempty"`
	ScrapeRunID  string  `json:"scrape_run_id,omitempty"`
	Disponible   bool    `json:"disponible"`
}

// Size is one size entry of a listing. (listing, label) is unique on the
// server; creating a duplicate yields 409.
type Size struct {
	ID                int64  `json:"id"`
	ZapatillaTiendaID int64  `json:"zapatilla_tienda_id"`
	Talla             string `json:"talla"`
	Disponible        bool   `json:"disponible"`
}

// NewSize is the creation payload for a size.
type NewSize struct {
	ZapatillaTiendaID int64  `json:"zapatilla_tienda_id"`
	Talla             string `json:"talla"`
	Disponible        bool   `json:"disponible"`
}
