package orderflow

import (
	"bytes"
	"fmt"
	"html/template"

	"kidshop/pkg/models"
)

// adminLanguage is used for everything the shop staff reads
const adminLanguage = models.LangKa

type phrases struct {
	CustomerPlacedSMS    string // number, total
	CustomerConfirmedSMS string // number, total
	SubjectPlaced        string // number
	SubjectConfirmed     string // number
	SubjectFailed        string // number
	Greeting             string // name
	IntroPlaced          string
	IntroConfirmed       string
	IntroFailed          string
	Product              string
	Quantity             string
	Price                string
	Subtotal             string
	Shipping             string
	Total                string
	Payment              string
	ShipTo               string
	Footer               string
}

var dictionary = map[models.Language]phrases{
	models.LangKa: {
		CustomerPlacedSMS:    "თქვენი შეკვეთა %s მიღებულია. ჯამი: %s ₾. მადლობა, რომ ჩვენ აგვირჩიეთ!",
		CustomerConfirmedSMS: "შეკვეთა %s გადახდილია (%s ₾). მალე დაგიკავშირდებით მიწოდებასთან დაკავშირებით.",
		SubjectPlaced:        "შეკვეთა %s მიღებულია",
		SubjectConfirmed:     "შეკვეთა %s გადახდილია",
		SubjectFailed:        "შეკვეთა %s: გადახდა ვერ შესრულდა",
		Greeting:             "გამარჯობა, %s!",
		IntroPlaced:          "მადლობა შეკვეთისთვის. ჩვენ მალე დაგიკავშირდებით.",
		IntroConfirmed:       "თქვენი გადახდა წარმატებით დადასტურდა. შეკვეთა მზადდება გასაგზავნად.",
		IntroFailed:          "სამწუხაროდ, გადახდა ვერ შესრულდა. შეგიძლიათ სცადოთ თავიდან ან დაგვიკავშირდეთ.",
		Product:              "პროდუქტი",
		Quantity:             "რაოდენობა",
		Price:                "ფასი",
		Subtotal:             "ჯამი",
		Shipping:             "მიწოდება",
		Total:                "სულ",
		Payment:              "გადახდის მეთოდი",
		ShipTo:               "მიწოდების მისამართი",
		Footer:               "ეს წერილი გამოგზავნილია ავტომატურად.",
	},
	models.LangEn: {
		CustomerPlacedSMS:    "Your order %s has been received. Total: %s GEL. Thank you for shopping with us!",
		CustomerConfirmedSMS: "Order %s is paid (%s GEL). We will contact you about delivery soon.",
		SubjectPlaced:        "Order %s received",
		SubjectConfirmed:     "Order %s paid",
		SubjectFailed:        "Order %s: payment failed",
		Greeting:             "Hello, %s!",
		IntroPlaced:          "Thank you for your order. We will contact you shortly.",
		IntroConfirmed:       "Your payment was confirmed. Your order is being prepared for shipping.",
		IntroFailed:          "Unfortunately the payment did not go through. You can try again or contact us.",
		Product:              "Product",
		Quantity:             "Qty",
		Price:                "Price",
		Subtotal:             "Subtotal",
		Shipping:             "Shipping",
		Total:                "Total",
		Payment:              "Payment method",
		ShipTo:               "Shipping address",
		Footer:               "This email was sent automatically.",
	},
	models.LangRu: {
		CustomerPlacedSMS:    "Ваш заказ %s принят. Сумма: %s GEL. Спасибо за покупку!",
		CustomerConfirmedSMS: "Заказ %s оплачен (%s GEL). Мы скоро свяжемся с вами по поводу доставки.",
		SubjectPlaced:        "Заказ %s принят",
		SubjectConfirmed:     "Заказ %s оплачен",
		SubjectFailed:        "Заказ %s: оплата не прошла",
		Greeting:             "Здравствуйте, %s!",
		IntroPlaced:          "Спасибо за заказ. Мы скоро с вами свяжемся.",
		IntroConfirmed:       "Оплата подтверждена. Ваш заказ готовится к отправке.",
		IntroFailed:          "К сожалению, оплата не прошла. Попробуйте ещё раз или свяжитесь с нами.",
		Product:              "Товар",
		Quantity:             "Кол-во",
		Price:                "Цена",
		Subtotal:             "Подытог",
		Shipping:             "Доставка",
		Total:                "Итого",
		Payment:              "Способ оплаты",
		ShipTo:               "Адрес доставки",
		Footer:               "Это письмо отправлено автоматически.",
	},
}

var paymentMethodNames = map[models.Language]map[string]string{
	models.LangKa: {
		models.PaymentMethodCard:           "ბარათით",
		models.PaymentMethodCashOnDelivery: "ადგილზე გადახდა",
		models.PaymentMethodBankTransfer:   "საბანკო გადარიცხვა",
	},
	models.LangEn: {
		models.PaymentMethodCard:           "Card",
		models.PaymentMethodCashOnDelivery: "Cash on delivery",
		models.PaymentMethodBankTransfer:   "Bank transfer",
	},
	models.LangRu: {
		models.PaymentMethodCard:           "Картой",
		models.PaymentMethodCashOnDelivery: "Оплата при получении",
		models.PaymentMethodBankTransfer:   "Банковский перевод",
	},
}

func phrasesFor(lang models.Language) phrases {
	if p, ok := dictionary[lang]; ok {
		return p
	}
	return dictionary[models.DefaultLanguage]
}

func paymentMethodName(lang models.Language, method string) string {
	if names, ok := paymentMethodNames[lang]; ok {
		if name, ok := names[method]; ok {
			return name
		}
	}
	return method
}

// Message is a rendered notification
type Message struct {
	Subject string
	Body    string
}

func adminSMS(order *models.Order, kind string) Message {
	prefix := "ახალი შეკვეთა"
	if kind == models.KindPaymentConfirmed {
		prefix = "გადახდილი შეკვეთა"
	}
	body := fmt.Sprintf("%s %s: %s ₾, %s, %s. %s",
		prefix,
		order.OrderNumber,
		models.FormatAmount(order.TotalAmount),
		order.CustomerName,
		order.CustomerPhone,
		paymentMethodName(adminLanguage, order.PaymentMethod),
	)
	return Message{Body: body}
}

func customerSMS(order *models.Order, kind string) Message {
	p := phrasesFor(order.Language)
	format := p.CustomerPlacedSMS
	if kind == models.KindPaymentConfirmed {
		format = p.CustomerConfirmedSMS
	}
	return Message{Body: fmt.Sprintf(format, order.OrderNumber, models.FormatAmount(order.TotalAmount))}
}

func inAppMessage(order *models.Order, kind string) Message {
	switch kind {
	case models.KindPaymentConfirmed:
		return Message{
			Subject: fmt.Sprintf("შეკვეთა %s გადახდილია", order.OrderNumber),
			Body:    fmt.Sprintf("%s, %s ₾, %s", order.CustomerName, models.FormatAmount(order.TotalAmount), order.CustomerPhone),
		}
	case models.KindPaymentFailed:
		return Message{
			Subject: fmt.Sprintf("შეკვეთა %s: გადახდა ვერ შესრულდა", order.OrderNumber),
			Body:    fmt.Sprintf("%s, %s", order.CustomerName, order.CustomerPhone),
		}
	case kindPaidAfterCancel:
		return Message{
			Subject: fmt.Sprintf("გაუქმებული შეკვეთა %s გადახდილია: საჭიროა თანხის დაბრუნება", order.OrderNumber),
			Body:    fmt.Sprintf("%s, %s ₾, %s", order.CustomerName, models.FormatAmount(order.TotalAmount), order.CustomerPhone),
		}
	case kindAwaitingPayment:
		return Message{
			Subject: fmt.Sprintf("ახალი შეკვეთა %s ელოდება გადახდას", order.OrderNumber),
			Body:    fmt.Sprintf("%s, %s ₾, %s", order.CustomerName, models.FormatAmount(order.TotalAmount), order.CustomerPhone),
		}
	default:
		return Message{
			Subject: fmt.Sprintf("ახალი შეკვეთა %s", order.OrderNumber),
			Body: fmt.Sprintf("%s, %s ₾, %s. %s", order.CustomerName, models.FormatAmount(order.TotalAmount),
				order.CustomerPhone, paymentMethodName(adminLanguage, order.PaymentMethod)),
		}
	}
}

type emailLine struct {
	Name     string
	Quantity int
	Price    string
	Total    string
}

type emailData struct {
	T        phrases
	Greeting string
	Intro    string
	Number   string
	Lines    []emailLine
	Subtotal string
	Shipping string
	Total    string
	Method   string
	Address  string
	Shop     string
}

var emailTemplate = template.Must(template.New("order_email").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .header { background-color: #F6A5C0; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; }
        table { width: 100%; border-collapse: collapse; margin: 20px 0; }
        th, td { padding: 8px; border-bottom: 1px solid #eee; text-align: left; }
        .total { font-weight: bold; }
        .footer { background-color: #f1f1f1; padding: 20px; text-align: center; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.Shop}}</h1>
        <p>{{.Number}}</p>
    </div>
    <div class="content">
        <p>{{.Greeting}}</p>
        <p>{{.Intro}}</p>
        {{if .Lines}}
        <table>
            <tr><th>{{.T.Product}}</th><th>{{.T.Quantity}}</th><th>{{.T.Price}}</th><th>{{.T.Total}}</th></tr>
            {{range .Lines}}
            <tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{.Price}}</td><td>{{.Total}}</td></tr>
            {{end}}
            <tr><td colspan="3">{{.T.Subtotal}}</td><td>{{.Subtotal}}</td></tr>
            <tr><td colspan="3">{{.T.Shipping}}</td><td>{{.Shipping}}</td></tr>
            <tr class="total"><td colspan="3">{{.T.Total}}</td><td>{{.Total}} ₾</td></tr>
        </table>
        {{end}}
        <p>{{.T.Payment}}: {{.Method}}</p>
        {{if .Address}}<p>{{.T.ShipTo}}: {{.Address}}</p>{{end}}
    </div>
    <div class="footer">
        <p>{{.T.Footer}}</p>
    </div>
</body>
</html>
`))

func customerEmail(order *models.Order, kind, shop string) (Message, error) {
	lang := order.Language
	p := phrasesFor(lang)

	subject, intro := p.SubjectPlaced, p.IntroPlaced
	switch kind {
	case models.KindPaymentConfirmed:
		subject, intro = p.SubjectConfirmed, p.IntroConfirmed
	case models.KindPaymentFailed:
		subject, intro = p.SubjectFailed, p.IntroFailed
	}

	data := emailData{
		T:        p,
		Greeting: fmt.Sprintf(p.Greeting, order.CustomerName),
		Intro:    intro,
		Number:   order.OrderNumber,
		Subtotal: models.FormatAmount(order.Subtotal),
		Shipping: models.FormatAmount(order.ShippingAmount),
		Total:    models.FormatAmount(order.TotalAmount),
		Method:   paymentMethodName(lang, order.PaymentMethod),
		Shop:     shop,
	}
	if order.ShippingCity != "" || order.ShippingAddress != "" {
		data.Address = order.ShippingCity
		if order.ShippingAddress != "" {
			if data.Address != "" {
				data.Address += ", "
			}
			data.Address += order.ShippingAddress
		}
	}
	for _, item := range order.Items {
		data.Lines = append(data.Lines, emailLine{
			Name:     item.ProductName.Get(lang),
			Quantity: item.Quantity,
			Price:    models.FormatAmount(item.UnitPrice),
			Total:    models.FormatAmount(item.Total),
		})
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("failed to render email template: %w", err)
	}
	return Message{Subject: fmt.Sprintf(subject, order.OrderNumber), Body: buf.String()}, nil
}
