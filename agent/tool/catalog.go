package tool

import (
	"github.com/cloudwego/eino/schema"
)

const (
	ToolGetProducts    = "get_products"
	ToolCheckStock     = "check_stock"
	ToolCalculateOrder = "calculate_order"
	ToolCreateOrder    = "create_order"
)

func itemsParam(desc string) *schema.ParameterInfo {
	return &schema.ParameterInfo{
		Type:     schema.Array,
		Desc:     desc,
		Required: true,
		ElemInfo: &schema.ParameterInfo{
			Type: schema.Object,
			SubParams: map[string]*schema.ParameterInfo{
				"sku": {Type: schema.String, Desc: "SKU товара: 0_5L, 1L, 5L или 19L", Required: true},
				"qty": {Type: schema.Integer, Desc: "Количество упаковок", Required: true},
			},
		},
	}
}

// Infos declares the fixed four-tool surface exposed to the model.
func Infos() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name:        ToolGetProducts,
			Desc:        "Получить список всех товаров AQUADOKS с ценами, размерами упаковок и наличием.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		{
			Name: ToolCheckStock,
			Desc: "Проверить наличие товара на складе по SKU.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"sku": {Type: schema.String, Desc: "SKU товара: 0_5L, 1L, 5L или 19L", Required: true},
			}),
		},
		{
			Name: ToolCalculateOrder,
			Desc: "Рассчитать стоимость заказа с учётом скидки, ничего не резервируя.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"items": itemsParam("Список позиций заказа"),
			}),
		},
		{
			Name: ToolCreateOrder,
			Desc: "Создать заказ с доставкой по Санкт-Петербургу.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"customer_name":  {Type: schema.String, Desc: "Имя клиента", Required: true},
				"customer_phone": {Type: schema.String, Desc: "Телефон клиента", Required: true},
				"city":           {Type: schema.String, Desc: "Город доставки", Required: true},
				"address":        {Type: schema.String, Desc: "Адрес доставки", Required: true},
				"items":          itemsParam("Позиции заказа"),
			}),
		},
	}
}
