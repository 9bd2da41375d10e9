package requests

// ProductRequest is the body of a supplier product detail request.
type ProductRequest struct {
	ProductCode string `json:"productCode"`
	LanguageID  int    `json:"languageId"`
	DomainID    int    `json:"domainId"`
	PriceListID int    `json:"priceListId"`
}
