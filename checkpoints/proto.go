package checkpoints

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// The binary artifact format is a protobuf Struct holding the same value
// tree as the JSON format. Going through the JSON representation keeps
// the two formats field-for-field identical without a second schema.

func marshalBinary(v interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %v", err)
	}
	var tree map[string]interface{}
	if err := json.Unmarshal(jsonData, &tree); err != nil {
		return nil, fmt.Errorf("failed to build value tree: %v", err)
	}
	st, err := structpb.NewStruct(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to build proto struct: %v", err)
	}
	return proto.Marshal(st)
}

func unmarshalBinary(data []byte, v interface{}) error {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("failed to unmarshal proto struct: %v", err)
	}
	jsonData, err := json.Marshal(st.AsMap())
	if err != nil {
		return fmt.Errorf("failed to flatten proto struct: %v", err)
	}
	return json.Unmarshal(jsonData, v)
}
