package delivery

import "errors"

var ErrDeliveryNotFound = errors.New("delivery not found")
