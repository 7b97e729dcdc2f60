package dispatcher

import "fmt"

func (d *Dispatcher) dispatchArticles(action string, params map[string]any) (any, error) {
	switch action {
	case "create":
		title, err := requireString(params, "title")
		if err != nil {
			return nil, err
		}
		return d.articles.Create(
			title,
			paramStringSlice(params, "authors"),
			optionalStringPtr(params, "abstract"),
			optionalIntPtr(params, "year"),
			optionalStringPtr(params, "source_url"),
			optionalStringPtr(params, "arxiv_id"),
			optionalStringPtr(params, "s2_id"),
			optionalStringPtr(params, "pdf_path"),
		)

	case "list":
		return d.articles.List(optionalStringPtr(params, "tag"))

	case "get":
		id, err := requireInt64(params, "id")
		if err != nil {
			return nil, err
		}
		return d.articles.Get(id)

	case "update":
		id, err := requireInt64(params, "id")
		if err != nil {
			return nil, err
		}
		var authors []string
		if _, ok := params["authors"]; ok {
			authors = paramStringSlice(params, "authors")
		}
		return d.articles.Update(
			id,
			optionalStringPtr(params, "title"),
			authors,
			optionalStringPtr(params, "abstract"),
			optionalIntPtr(params, "year"),
			optionalStringPtr(params, "source_url"),
			optionalStringPtr(params, "arxiv_id"),
			optionalStringPtr(params, "s2_id"),
			optionalStringPtr(params, "pdf_path"),
		)

	case "delete":
		id, err := requireInt64(params, "id")
		if err != nil {
			return nil, err
		}
		return nil, d.articles.Delete(id)

	case "add_tag":
		id, err := requireInt64(params, "id")
		if err != nil {
			return nil, err
		}
		tag, err := requireString(params, "tag")
		if err != nil {
			return nil, err
		}
		return nil, d.articles.AddTag(id, tag)

	case "remove_tag":
		id, err := requireInt64(params, "id")
		if err != nil {
			return nil, err
		}
		tag, err := requireString(params, "tag")
		if err != nil {
			return nil, err
		}
		return nil, d.articles.RemoveTag(id, tag)

	case "list_tags":
		return d.articles.ListTags()

	default:
		return nil, fmt.Errorf("unknown articles action: %s", action)
	}
}
