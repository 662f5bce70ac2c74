package types

// Standard resource names, as they appear in backend URLs.
const (
	ResourceProducts     = "products"
	ResourceCategories   = "categories"
	ResourceBanners      = "banners"
	ResourceTestimonials = "testimonials"
	ResourceUsers        = "users"
	ResourceOrders       = "orders"
	ResourceWhyChooseUs  = "whyChooseUs"
)

// Common status values shared by most resources.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

var statusOptions = []string{StatusActive, StatusInactive}

func bound(v float64) *float64 { return &v }

func statusField() Field {
	return Field{Name: "status", Kind: KindEnum, Options: statusOptions, Default: StatusActive}
}

// StandardSchemas lists the schema of every standard resource in sidebar order.
var StandardSchemas = []Schema{
	{
		Name: ResourceProducts, Singular: "Product", Plural: "Products",
		Creatable: true, Editable: true, Deletable: true,
		Fields: []Field{
			{Name: "name", Kind: KindText, Required: true},
			{Name: "price", Kind: KindNumber, Min: bound(0)},
			{Name: "stock", Kind: KindInt, Min: bound(0)},
			{Name: "category", Kind: KindText},
			{Name: "subCategory", Kind: KindText},
			{Name: "subSubCategory", Kind: KindText},
			{Name: "sku", Kind: KindText},
			statusField(),
			{Name: "colors", Kind: KindList},
			{Name: "materials", Kind: KindList},
		},
	},
	{
		Name: ResourceCategories, Singular: "Category", Plural: "Categories",
		Creatable: true, Editable: true, Deletable: true,
		Fields: []Field{
			{Name: "name", Kind: KindText, Required: true},
			{Name: "image", Kind: KindText},
			{Name: "subCategory", Kind: KindList},
			statusField(),
		},
	},
	{
		Name: ResourceBanners, Singular: "Banner", Plural: "Banners",
		Creatable: true, Editable: true, Deletable: true,
		Fields: []Field{
			{Name: "title", Kind: KindText, Required: true},
			{Name: "subtitle", Kind: KindText, Required: true},
			{Name: "image", Kind: KindText},
			{Name: "link", Kind: KindText, Required: true},
			statusField(),
			{Name: "position", Kind: KindInt, Required: true, Min: bound(1), Default: 1},
		},
	},
	{
		Name: ResourceTestimonials, Singular: "Testimonial", Plural: "Testimonials",
		Creatable: true, Editable: true, Deletable: true,
		Fields: []Field{
			{Name: "name", Kind: KindText, Required: true},
			{Name: "role", Kind: KindText, Required: true},
			{Name: "content", Kind: KindText, Required: true},
			{Name: "rating", Kind: KindInt, Min: bound(1), Max: bound(5), Default: 5},
			{Name: "avatar", Kind: KindText},
			statusField(),
		},
	},
	{
		Name: ResourceUsers, Singular: "User", Plural: "Users",
		Creatable: true, Editable: true, Deletable: true,
		Fields: []Field{
			{Name: "name", Kind: KindText, Required: true},
			{Name: "email", Kind: KindText, Required: true},
			{Name: "role", Kind: KindEnum, Options: []string{"user", "moderator", "admin"}, Default: "user"},
			statusField(),
		},
	},
	{
		Name: ResourceOrders, Singular: "Order", Plural: "Orders",
		Deletable: true,
		Fields: []Field{
			{Name: "customer", Kind: KindText},
			{Name: "items", Kind: KindInt, Min: bound(0)},
			{Name: "total", Kind: KindNumber, Min: bound(0)},
			{Name: "status", Kind: KindEnum, Options: []string{"pending", "processing", "shipped", "delivered"}},
			{Name: "paymentMethod", Kind: KindText},
			{Name: "date", Kind: KindText},
		},
	},
	{
		Name: ResourceWhyChooseUs, Singular: "Item", Plural: "Why Choose Us",
		Creatable: true, Editable: true, Deletable: true,
		Fields: []Field{
			{Name: "title", Kind: KindText, Required: true},
			{Name: "description", Kind: KindText, Required: true},
			{Name: "icon", Kind: KindEnum, Options: []string{"truck", "star", "headset", "shield"}, Default: "star"},
			statusField(),
			{Name: "order", Kind: KindInt, Required: true, Min: bound(1), Default: 1},
		},
	},
}

// StandardResources lists the standard resource names for enumeration.
var StandardResources = func() []string {
	names := make([]string, len(StandardSchemas))
	for i, s := range StandardSchemas {
		names[i] = s.Name
	}
	return names
}()

// LookupSchema returns the schema for a standard resource.
// Returns ErrUnknownResource if name is not one of StandardResources.
func LookupSchema(name string) (Schema, error) {
	for _, s := range StandardSchemas {
		if s.Name == name {
			return s, nil
		}
	}
	return Schema{}, ErrUnknownResource
}
