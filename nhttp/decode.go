package nhttp

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/muir/ndep"
)

// DecodeJSON returns a producer of T that unmarshals the request
// body.  A body that does not unmarshal is a 400.
//
//	inj.Register(nhttp.DecodeJSON[CreateUser]())
func DecodeJSON[T any]() *ndep.Producer {
	return ndep.MakeProducer("decodeJSON", ndep.KeyOf[T](),
		[]ndep.Param{{Name: "body", Key: ndep.KeyOf[Body]()}},
		func(args []any) (any, error) {
			var model T
			body, _ := args[0].(Body)
			if len(body) == 0 {
				return nil, BadRequest(errors.New("empty request body"))
			}
			if err := json.Unmarshal(body, &model); err != nil {
				return nil, BadRequest(errors.Wrap(err, "decode body"))
			}
			return model, nil
		})
}
